package loan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID uint64) (*Loan, error)
	// GetByLoanIDForUpdate locks the row until the surrounding tx ends.
	GetByLoanIDForUpdate(ctx context.Context, loanID uint64) (*Loan, error)
	Save(ctx context.Context, l *Loan) error

	// Borrower index
	AppendBorrowerLoan(ctx context.Context, borrower common.Address, loanID uint64) error
	ListBorrowerLoanIDs(ctx context.Context, borrower common.Address) ([]uint64, error)
}

type LedgerRepository interface {
	// GetForUpdate returns the ledger row locked, creating it on first use.
	GetForUpdate(ctx context.Context) (*Ledger, error)
	Get(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
}
