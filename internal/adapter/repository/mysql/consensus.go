package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	consensusDomain "collateral-loans/internal/domain/consensus"
)

type SubmissionRepository struct{ db *gorm.DB }

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *consensusDomain.Submission) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: signer %s nonce %d", consensusDomain.ErrSignerNonceTaken, s.Signer, s.SignerNonce)
	}
	return err
}

func (r *SubmissionRepository) SignerNonceTaken(ctx context.Context, signer common.Address, nonce uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&consensusDomain.Submission{}).
		Where("signer = ? AND signer_nonce = ?", signer, nonce).
		Count(&n).Error
	return n > 0, err
}

func (r *SubmissionRepository) TakeRequestNonce(ctx context.Context, borrower common.Address, nonce, loanID uint64) error {
	db := r.db.WithContext(ctx)
	var n int64
	if err := db.Model(&consensusDomain.RequestNonce{}).
		Where("borrower = ? AND nonce = ?", borrower, nonce).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: borrower %s nonce %d", consensusDomain.ErrRequestNonceTaken, borrower, nonce)
	}
	err := db.Create(&consensusDomain.RequestNonce{Borrower: borrower, Nonce: nonce, LoanID: loanID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: borrower %s nonce %d", consensusDomain.ErrRequestNonceTaken, borrower, nonce)
	}
	return err
}

func (r *SubmissionRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]consensusDomain.Submission, error) {
	var out []consensusDomain.Submission
	err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out).Error
	return out, err
}
