package loanmock

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	domain "collateral-loans/internal/domain/loan"
)

var (
	_ domain.Repository       = (*Repo)(nil)
	_ domain.LedgerRepository = (*LedgerRepo)(nil)
)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset writers are no-ops; unset readers return context.Canceled.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn          func(ctx context.Context, loanID uint64) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID uint64) (*domain.Loan, error)
	SaveFn                 func(ctx context.Context, l *domain.Loan) error
	AppendBorrowerLoanFn   func(ctx context.Context, borrower common.Address, loanID uint64) error
	ListBorrowerLoanIDsFn  func(ctx context.Context, borrower common.Address) ([]uint64, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *Repo) GetByLoanID(ctx context.Context, loanID uint64) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}
func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID uint64) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}
func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}
func (m *Repo) AppendBorrowerLoan(ctx context.Context, borrower common.Address, loanID uint64) error {
	if m.AppendBorrowerLoanFn != nil {
		return m.AppendBorrowerLoanFn(ctx, borrower, loanID)
	}
	return nil
}
func (m *Repo) ListBorrowerLoanIDs(ctx context.Context, borrower common.Address) ([]uint64, error) {
	if m.ListBorrowerLoanIDsFn != nil {
		return m.ListBorrowerLoanIDsFn(ctx, borrower)
	}
	return nil, context.Canceled
}

// LedgerRepo is a function-backed mock that satisfies domain.LedgerRepository.
type LedgerRepo struct {
	GetForUpdateFn func(ctx context.Context) (*domain.Ledger, error)
	GetFn          func(ctx context.Context) (*domain.Ledger, error)
	SaveFn         func(ctx context.Context, l *domain.Ledger) error
}

func (m *LedgerRepo) GetForUpdate(ctx context.Context) (*domain.Ledger, error) {
	if m.GetForUpdateFn != nil {
		return m.GetForUpdateFn(ctx)
	}
	return nil, context.Canceled
}
func (m *LedgerRepo) Get(ctx context.Context) (*domain.Ledger, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx)
	}
	return nil, context.Canceled
}
func (m *LedgerRepo) Save(ctx context.Context, l *domain.Ledger) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}
