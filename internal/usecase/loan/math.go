package loan

import (
	"math/big"

	"github.com/holiman/uint256"

	domain "collateral-loans/internal/domain/loan"
)

const (
	basisPoints               = 10_000
	liquidationPaymentPercent = 95
	secondsPerYear            = 365 * 24 * 60 * 60
)

var (
	bps             = uint256.NewInt(basisPoints)
	hundred         = uint256.NewInt(100)
	liquidationPct  = uint256.NewInt(liquidationPaymentPercent)
	yearBasisPoints = uint256.NewInt(basisPoints * secondsPerYear)
)

// mulDiv returns x*y/d truncated, with a 512-bit intermediate.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, domain.ErrArithmeticOverflow
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, domain.ErrArithmeticOverflow
	}
	return z, nil
}

func pow10(n uint8) (*uint256.Int, error) {
	z := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		if _, overflow := z.MulOverflow(z, ten); overflow {
			return nil, domain.ErrArithmeticOverflow
		}
	}
	return z, nil
}

// minimumCollateralValue is totalOwed * collateralRatio / 10000, in lending
// token units.
func minimumCollateralValue(l *domain.Loan) (*uint256.Int, error) {
	return mulDiv(l.TotalOwed.Uint256(), uint256.NewInt(l.Terms.CollateralRatio), bps)
}

// interestFor is amount * rate * duration / 10000 / secondsPerYear.
func interestFor(amount domain.Amount, rate, duration uint64) (*uint256.Int, error) {
	rd, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(rate), uint256.NewInt(duration))
	if overflow {
		return nil, domain.ErrArithmeticOverflow
	}
	return mulDiv(amount.Uint256(), rd, yearBasisPoints)
}

// collateralCovers reports collateral * unit * 10000 >= amount * ratio * price
// without any truncation.
func collateralCovers(collateral, amount domain.Amount, ratio uint64, price, unit *uint256.Int) bool {
	lhs := new(big.Int).Mul(collateral.Big(), unit.ToBig())
	lhs.Mul(lhs, big.NewInt(basisPoints))
	rhs := new(big.Int).Mul(amount.Big(), new(big.Int).SetUint64(ratio))
	rhs.Mul(rhs, price.ToBig())
	return lhs.Cmp(rhs) >= 0
}
