package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	loanDomain "collateral-loans/internal/domain/loan"
)

// LedgerRepository persists the single loan_ledger row.
type LedgerRepository struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) *LedgerRepository { return &LedgerRepository{db: db} }

func (r *LedgerRepository) GetForUpdate(ctx context.Context) (*loanDomain.Ledger, error) {
	db := r.db.WithContext(ctx)
	// make sure the row exists so there is something to lock
	seed := loanDomain.Ledger{ID: loanDomain.LedgerRowID, TotalCollateral: loanDomain.NewAmount(0)}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var out loanDomain.Ledger
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, "id = ?", loanDomain.LedgerRowID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns a zero ledger before the first loan exists.
func (r *LedgerRepository) Get(ctx context.Context) (*loanDomain.Ledger, error) {
	var out loanDomain.Ledger
	err := r.db.WithContext(ctx).First(&out, "id = ?", loanDomain.LedgerRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &loanDomain.Ledger{ID: loanDomain.LedgerRowID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *LedgerRepository) Save(ctx context.Context, l *loanDomain.Ledger) error {
	l.ID = loanDomain.LedgerRowID
	return r.db.WithContext(ctx).Save(l).Error
}
