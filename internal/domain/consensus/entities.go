package consensus

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"collateral-loans/internal/domain/loan"
)

var (
	ErrInsufficientResponses    = errors.New("consensus: insufficient responses")
	ErrRequestNonceTaken        = errors.New("consensus: request nonce already taken")
	ErrSignerNonceTaken         = errors.New("consensus: signer nonce already taken")
	ErrUnauthorizedSigner       = errors.New("consensus: signer not authorized")
	ErrConsensusAddressMismatch = errors.New("consensus: response for a different consensus address")
	ErrResponseExpired          = errors.New("consensus: response expired")
	ErrDuplicateSigner          = errors.New("consensus: signer submitted more than once")
	ErrSignatureMismatch        = errors.New("consensus: signature does not match signer")
	ErrOutsideTolerance         = errors.New("consensus: responses outside tolerance")
	ErrInvalidRequest           = errors.New("consensus: invalid request")
)

// LoanRequest is what the borrower asks the signers to price.
type LoanRequest struct {
	Borrower         common.Address `json:"borrower"`
	Recipient        common.Address `json:"recipient"`
	ConsensusAddress common.Address `json:"consensus_address"`
	RequestNonce     uint64         `json:"request_nonce"`
	Amount           loan.Amount    `json:"amount"`
	Duration         uint64         `json:"duration"`
	RequestTime      int64          `json:"request_time"`
}

// LoanResponse is one signer's signed proposal for a request.
type LoanResponse struct {
	Signer           common.Address `json:"signer"`
	ConsensusAddress common.Address `json:"consensus_address"`
	ResponseTime     int64          `json:"response_time"`
	InterestRate     uint64         `json:"interest_rate"`
	CollateralRatio  uint64         `json:"collateral_ratio"`
	MaxLoanAmount    loan.Amount    `json:"max_loan_amount"`
	SignerNonce      uint64         `json:"signer_nonce"`
	Signature        hexutil.Bytes  `json:"signature"`
}

// Terms is the aggregate the signers agreed on.
type Terms struct {
	InterestRate    uint64
	CollateralRatio uint64
	MaxLoanAmount   loan.Amount
}

// Submission records one accepted response. (signer, signer_nonce) is unique
// so a signature can never be replayed.
type Submission struct {
	ID              uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	LoanID          uint64         `gorm:"column:loan_id;not null;index"`
	Signer          common.Address `gorm:"column:signer;type:varbinary(20);not null;uniqueIndex:ux_submissions_signer_nonce"`
	SignerNonce     uint64         `gorm:"column:signer_nonce;not null;uniqueIndex:ux_submissions_signer_nonce"`
	InterestRate    uint64         `gorm:"column:interest_rate;not null"`
	CollateralRatio uint64         `gorm:"column:collateral_ratio;not null"`
	MaxLoanAmount   loan.Amount    `gorm:"column:max_loan_amount;type:varchar(78);not null"`
	ResponseTime    time.Time      `gorm:"column:response_time;not null"`
	Signature       []byte         `gorm:"column:signature;type:varbinary(65);not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Submission) TableName() string { return "consensus_submissions" }

// RequestNonce marks a borrower's request nonce as consumed.
type RequestNonce struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	Borrower  common.Address `gorm:"column:borrower;type:varbinary(20);not null;uniqueIndex:ux_request_nonces_borrower_nonce"`
	Nonce     uint64         `gorm:"column:nonce;not null;uniqueIndex:ux_request_nonces_borrower_nonce"`
	LoanID    uint64         `gorm:"column:loan_id;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (RequestNonce) TableName() string { return "consensus_request_nonces" }
