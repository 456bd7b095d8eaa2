package uow

import (
	"context"

	"collateral-loans/internal/domain/collateral"
	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/pool"
)

// Repos are bound to a single transaction.
type Repos struct {
	Loans       loan.Repository
	Ledger      loan.LedgerRepository
	Submissions consensus.Repository
	Pool        pool.LendingPool
	Vault       collateral.Vault
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(r Repos, l *loan.Loan) error) error
	// Reader returns repos outside any transaction for read-only queries
	Reader() Repos
}
