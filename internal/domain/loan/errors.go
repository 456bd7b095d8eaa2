package loan

import "errors"

var (
	ErrNotFound               = errors.New("loan not found")
	ErrInvalidStatus          = errors.New("loan not in a state that allows this operation")
	ErrBorrowerMismatch       = errors.New("borrower does not match loan")
	ErrCallerNotBorrower      = errors.New("caller is not the loan borrower")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrOraclePriceStale       = errors.New("oracle price is stale")
	ErrInvalidPrice           = errors.New("oracle price must be positive")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrLiquidationNotNeeded   = errors.New("liquidation not needed")
	ErrTermsExpired           = errors.New("loan terms expired")
	ErrMaxLoanExceeded        = errors.New("amount exceeds max loan amount")
	ErrMissingCollaborator    = errors.New("missing collaborator")
)
