// Package event defines the notifications the loan engine emits after a
// state change commits.
package event

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/loan"
)

type Type string

const (
	CollateralDeposited Type = "CollateralDeposited"
	CollateralWithdrawn Type = "CollateralWithdrawn"
	LoanTermsSet        Type = "LoanTermsSet"
	LoanTakenOut        Type = "LoanTakenOut"
	LoanRepaid          Type = "LoanRepaid"
	LoanLiquidated      Type = "LoanLiquidated"
)

type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	LoanID     uint64         `json:"loan_id"`
	Borrower   common.Address `json:"borrower"`
	Account    common.Address `json:"account"` // recipient, payer or liquidator
	Amount     loan.Amount    `json:"amount"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
