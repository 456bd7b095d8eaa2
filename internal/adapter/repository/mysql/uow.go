package mysql

import (
	"context"

	"gorm.io/gorm"

	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/uow"
)

var _ uow.UnitOfWork = (*GormUoW)(nil)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func reposFor(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:       &LoanRepository{db: db},
		Ledger:      &LedgerRepository{db: db},
		Submissions: &SubmissionRepository{db: db},
		Pool:        &PoolJournal{db: db},
		Vault:       &VaultJournal{db: db},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		// lock the loan row up-front; the ledger row, if needed, comes second
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}

func (u *GormUoW) Reader() uow.Repos { return reposFor(u.db) }
