package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/loan"
)

// LendingPool custodies the lendable token. Implementations are bound to the
// caller's transaction.
type LendingPool interface {
	// CreateLoan disburses amount to recipient
	CreateLoan(ctx context.Context, loanID uint64, amount loan.Amount, recipient common.Address) error
	// Repay accepts a repayment from payer
	Repay(ctx context.Context, loanID uint64, amount loan.Amount, payer common.Address) error
	// LiquidationPayment accepts the liquidator's discounted payment
	LiquidationPayment(ctx context.Context, loanID uint64, amount loan.Amount, payer common.Address) error
}

// LendingToken exposes what the engine reads from the pool's token.
type LendingToken interface {
	Decimals(ctx context.Context) (uint8, error)
}

// StaticToken is a LendingToken with configured decimals.
type StaticToken uint8

func (t StaticToken) Decimals(context.Context) (uint8, error) { return uint8(t), nil }
