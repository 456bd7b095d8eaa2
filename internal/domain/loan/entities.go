package loan

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Status string

const (
	StatusTermsSet Status = "terms_set"
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
)

// Terms are fixed once by consensus when the loan is created.
type Terms struct {
	Borrower        common.Address `gorm:"column:borrower;type:varbinary(20);not null;index:idx_loans_borrower" json:"borrower"`
	Recipient       common.Address `gorm:"column:recipient;type:varbinary(20);not null" json:"recipient"`
	MaxLoanAmount   Amount         `gorm:"column:max_loan_amount;type:varchar(78);not null" json:"max_loan_amount"`
	CollateralRatio uint64         `gorm:"column:collateral_ratio;not null" json:"collateral_ratio"` // basis points
	InterestRate    uint64         `gorm:"column:interest_rate;not null" json:"interest_rate"`       // basis points, annual
	Duration        uint64         `gorm:"column:duration;not null" json:"duration"`                 // seconds
}

type Loan struct {
	ID               uint64     `gorm:"primaryKey;column:id" json:"-"`
	LoanID           uint64     `gorm:"column:loan_id;not null;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	Terms            Terms      `gorm:"embedded" json:"terms"`
	TermsExpiry      time.Time  `gorm:"column:terms_expiry" json:"terms_expiry"`
	LoanStartTime    *time.Time `gorm:"column:loan_start_time" json:"loan_start_time"`
	LoanEndTime      *time.Time `gorm:"column:loan_end_time" json:"loan_end_time"`
	Collateral       Amount     `gorm:"column:collateral;type:varchar(78);not null" json:"collateral"`
	LastCollateralIn *time.Time `gorm:"column:last_collateral_in" json:"last_collateral_in"`
	TotalOwed        Amount     `gorm:"column:total_owed;type:varchar(78);not null" json:"total_owed"`
	Status           Status     `gorm:"column:status;size:16;not null;default:'terms_set'" json:"status"`
	Liquidated       bool       `gorm:"column:liquidated;not null;default:false" json:"liquidated"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// BorrowerLoan is one entry of the append-only borrower → loan index.
type BorrowerLoan struct {
	ID       uint64         `gorm:"primaryKey;column:id"`
	Borrower common.Address `gorm:"column:borrower;type:varbinary(20);not null;index:idx_borrower_loans_borrower"`
	LoanID   uint64         `gorm:"column:loan_id;not null;uniqueIndex:ux_borrower_loans_loan_id"`
}

func (BorrowerLoan) TableName() string { return "borrower_loans" }

// Ledger holds the process-wide counters. There is exactly one row.
type Ledger struct {
	ID              uint8     `gorm:"primaryKey;column:id;autoIncrement:false"`
	LoanIDCounter   uint64    `gorm:"column:loan_id_counter;not null"`
	TotalCollateral Amount    `gorm:"column:total_collateral;type:varchar(78);not null"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Ledger) TableName() string { return "loan_ledger" }

// LedgerRowID is the primary key of the single ledger row.
const LedgerRowID uint8 = 1

// AllowsCollateral reports whether collateral may move in or out.
func (l *Loan) AllowsCollateral() bool {
	return l.Status == StatusTermsSet || l.Status == StatusActive
}

// Payee is where disbursed principal goes; the borrower when no recipient
// was given.
func (t Terms) Payee() common.Address {
	if t.Recipient == (common.Address{}) {
		return t.Borrower
	}
	return t.Recipient
}
