package collateral

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/loan"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Transfer journals collateral entering or leaving custody.
type Transfer struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LoanID    uint64         `gorm:"column:loan_id;not null;index" json:"loan_id"`
	Direction Direction      `gorm:"column:direction;size:8;not null" json:"direction"`
	Account   common.Address `gorm:"column:account;type:varbinary(20);not null" json:"account"`
	Amount    loan.Amount    `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Transfer) TableName() string { return "collateral_transfers" }

// Vault is the value-transfer sink for collateral.
type Vault interface {
	PayIn(ctx context.Context, loanID uint64, from common.Address, amount loan.Amount) error
	PayOut(ctx context.Context, loanID uint64, to common.Address, amount loan.Amount) error
}
