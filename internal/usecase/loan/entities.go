package loan

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collateral-loans/internal/domain/consensus"
	domain "collateral-loans/internal/domain/loan"
)

type SetLoanTermsInput struct {
	Caller     common.Address
	Request    consensus.LoanRequest
	Responses  []consensus.LoanResponse
	Collateral domain.Amount // value attached to the call
}

type DepositCollateralInput struct {
	Caller   common.Address
	Borrower common.Address
	LoanID   uint64
	Amount   domain.Amount
}

type WithdrawCollateralInput struct {
	Caller common.Address
	LoanID uint64
	Amount domain.Amount
}

type TakeOutLoanInput struct {
	Caller common.Address
	LoanID uint64
	Amount domain.Amount
}

type RepayInput struct {
	Caller common.Address
	LoanID uint64
	Amount domain.Amount
}

type LiquidateInput struct {
	Caller common.Address
	LoanID uint64
}

type RepayResult struct {
	Paid      domain.Amount `json:"paid"`
	TotalOwed domain.Amount `json:"total_owed"`
	Closed    bool          `json:"closed"`
}

type LiquidationResult struct {
	Payment    domain.Amount `json:"payment"`
	Collateral domain.Amount `json:"collateral"`
}

type LoanDTO struct {
	LoanID           uint64         `json:"loan_id"`
	Borrower         common.Address `json:"borrower"`
	Recipient        common.Address `json:"recipient"`
	MaxLoanAmount    domain.Amount  `json:"max_loan_amount"`
	CollateralRatio  uint64         `json:"collateral_ratio"`
	InterestRate     uint64         `json:"interest_rate"`
	Duration         uint64         `json:"duration"`
	TermsExpiry      time.Time      `json:"terms_expiry"`
	LoanStartTime    *time.Time     `json:"loan_start_time,omitempty"`
	LoanEndTime      *time.Time     `json:"loan_end_time,omitempty"`
	Collateral       domain.Amount  `json:"collateral"`
	LastCollateralIn *time.Time     `json:"last_collateral_in,omitempty"`
	TotalOwed        domain.Amount  `json:"total_owed"`
	Status           string         `json:"status"`
	Liquidated       bool           `json:"liquidated"`
}

type LedgerDTO struct {
	NextLoanID      uint64        `json:"next_loan_id"`
	TotalCollateral domain.Amount `json:"total_collateral"`
}

func optionalTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func toDTO(l *domain.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:           l.LoanID,
		Borrower:         l.Terms.Borrower,
		Recipient:        l.Terms.Recipient,
		MaxLoanAmount:    l.Terms.MaxLoanAmount,
		CollateralRatio:  l.Terms.CollateralRatio,
		InterestRate:     l.Terms.InterestRate,
		Duration:         l.Terms.Duration,
		TermsExpiry:      l.TermsExpiry.UTC(),
		LoanStartTime:    optionalTime(l.LoanStartTime),
		LoanEndTime:      optionalTime(l.LoanEndTime),
		Collateral:       l.Collateral,
		LastCollateralIn: optionalTime(l.LastCollateralIn),
		TotalOwed:        l.TotalOwed,
		Status:           string(l.Status),
		Liquidated:       l.Liquidated,
	}
}
