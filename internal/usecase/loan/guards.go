package loan

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	domain "collateral-loans/internal/domain/loan"
)

func requireStatus(l *domain.Loan, allowed ...domain.Status) error {
	for _, s := range allowed {
		if l.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: loan %d is %s", domain.ErrInvalidStatus, l.LoanID, l.Status)
}

func requireCollateralStatus(l *domain.Loan) error {
	if l.AllowsCollateral() {
		return nil
	}
	return fmt.Errorf("%w: loan %d is %s, collateral is locked", domain.ErrInvalidStatus, l.LoanID, l.Status)
}

func requireBorrower(l *domain.Loan, caller common.Address) error {
	if caller != l.Terms.Borrower {
		return fmt.Errorf("%w: loan %d", domain.ErrCallerNotBorrower, l.LoanID)
	}
	return nil
}

func requirePositive(a domain.Amount) error {
	if a.IsZero() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	return nil
}
