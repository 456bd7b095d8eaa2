package consensus

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Repository interface {
	// Create stores an accepted response (DB uniqueness guards signer nonce reuse)
	Create(ctx context.Context, s *Submission) error

	// SignerNonceTaken reports whether the signer already used nonce
	SignerNonceTaken(ctx context.Context, signer common.Address, nonce uint64) (bool, error)

	// TakeRequestNonce consumes the borrower's nonce, failing with ErrRequestNonceTaken on reuse
	TakeRequestNonce(ctx context.Context, borrower common.Address, nonce, loanID uint64) error

	ListByLoanID(ctx context.Context, loanID uint64) ([]Submission, error)
}
