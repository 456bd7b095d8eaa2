package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	loanDomain "collateral-loans/internal/domain/loan"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, "loan %d", loanID)
	}
	return &out, nil
}

// GetByLoanIDForUpdate takes a row lock; sqlite ignores the clause.
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, "loan %d", loanID)
	}
	return &out, nil
}

func (r *LoanRepository) AppendBorrowerLoan(ctx context.Context, borrower common.Address, loanID uint64) error {
	return r.db.WithContext(ctx).Create(&loanDomain.BorrowerLoan{Borrower: borrower, LoanID: loanID}).Error
}

func (r *LoanRepository) ListBorrowerLoanIDs(ctx context.Context, borrower common.Address) ([]uint64, error) {
	var ids []uint64
	res := r.db.WithContext(ctx).
		Model(&loanDomain.BorrowerLoan{}).
		Where("borrower = ?", borrower).
		Order("id ASC").
		Pluck("loan_id", &ids)
	return ids, res.Error
}

// notFound maps gorm's missing-row error onto the domain sentinel.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", loanDomain.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
