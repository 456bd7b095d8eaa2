package mysql

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	collateralDomain "collateral-loans/internal/domain/collateral"
	loanDomain "collateral-loans/internal/domain/loan"
	poolDomain "collateral-loans/internal/domain/pool"
)

// PoolJournal records lending pool movements in pool_movements.
type PoolJournal struct{ db *gorm.DB }

func NewPoolJournal(db *gorm.DB) *PoolJournal { return &PoolJournal{db: db} }

func (p *PoolJournal) record(ctx context.Context, loanID uint64, kind poolDomain.MovementKind, account common.Address, amount loanDomain.Amount) error {
	return p.db.WithContext(ctx).Create(&poolDomain.Movement{
		LoanID:  loanID,
		Kind:    kind,
		Account: account,
		Amount:  amount,
	}).Error
}

func (p *PoolJournal) CreateLoan(ctx context.Context, loanID uint64, amount loanDomain.Amount, recipient common.Address) error {
	return p.record(ctx, loanID, poolDomain.MovementDisbursement, recipient, amount)
}

func (p *PoolJournal) Repay(ctx context.Context, loanID uint64, amount loanDomain.Amount, payer common.Address) error {
	return p.record(ctx, loanID, poolDomain.MovementRepayment, payer, amount)
}

func (p *PoolJournal) LiquidationPayment(ctx context.Context, loanID uint64, amount loanDomain.Amount, payer common.Address) error {
	return p.record(ctx, loanID, poolDomain.MovementLiquidation, payer, amount)
}

// Movements lists a loan's pool movements oldest first.
func (p *PoolJournal) Movements(ctx context.Context, loanID uint64) ([]poolDomain.Movement, error) {
	var out []poolDomain.Movement
	err := p.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out).Error
	return out, err
}

// VaultJournal records collateral custody in collateral_transfers.
type VaultJournal struct{ db *gorm.DB }

func NewVaultJournal(db *gorm.DB) *VaultJournal { return &VaultJournal{db: db} }

func (v *VaultJournal) record(ctx context.Context, loanID uint64, dir collateralDomain.Direction, account common.Address, amount loanDomain.Amount) error {
	return v.db.WithContext(ctx).Create(&collateralDomain.Transfer{
		LoanID:    loanID,
		Direction: dir,
		Account:   account,
		Amount:    amount,
	}).Error
}

func (v *VaultJournal) PayIn(ctx context.Context, loanID uint64, from common.Address, amount loanDomain.Amount) error {
	return v.record(ctx, loanID, collateralDomain.DirectionIn, from, amount)
}

func (v *VaultJournal) PayOut(ctx context.Context, loanID uint64, to common.Address, amount loanDomain.Amount) error {
	return v.record(ctx, loanID, collateralDomain.DirectionOut, to, amount)
}

// Transfers lists a loan's collateral transfers oldest first.
func (v *VaultJournal) Transfers(ctx context.Context, loanID uint64) ([]collateralDomain.Transfer, error) {
	var out []collateralDomain.Transfer
	err := v.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out).Error
	return out, err
}
