package consensusmock

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	domain "collateral-loans/internal/domain/consensus"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn           func(ctx context.Context, s *domain.Submission) error
	SignerNonceTakenFn func(ctx context.Context, signer common.Address, nonce uint64) (bool, error)
	TakeRequestNonceFn func(ctx context.Context, borrower common.Address, nonce, loanID uint64) error
	ListByLoanIDFn     func(ctx context.Context, loanID uint64) ([]domain.Submission, error)
}

func (m *Repo) Create(ctx context.Context, s *domain.Submission) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, s)
	}
	return nil
}

func (m *Repo) SignerNonceTaken(ctx context.Context, signer common.Address, nonce uint64) (bool, error) {
	if m.SignerNonceTakenFn != nil {
		return m.SignerNonceTakenFn(ctx, signer, nonce)
	}
	return false, nil
}

func (m *Repo) TakeRequestNonce(ctx context.Context, borrower common.Address, nonce, loanID uint64) error {
	if m.TakeRequestNonceFn != nil {
		return m.TakeRequestNonceFn(ctx, borrower, nonce, loanID)
	}
	return nil
}

func (m *Repo) ListByLoanID(ctx context.Context, loanID uint64) ([]domain.Submission, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}
