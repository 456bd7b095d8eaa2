package pool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/loan"
)

type MovementKind string

const (
	MovementDisbursement MovementKind = "disbursement"
	MovementRepayment    MovementKind = "repayment"
	MovementLiquidation  MovementKind = "liquidation"
)

// Movement is one lending-token transfer in or out of the pool.
type Movement struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LoanID    uint64         `gorm:"column:loan_id;not null;index" json:"loan_id"`
	Kind      MovementKind   `gorm:"column:kind;size:16;not null" json:"kind"`
	Account   common.Address `gorm:"column:account;type:varbinary(20);not null" json:"account"`
	Amount    loan.Amount    `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Movement) TableName() string { return "pool_movements" }
