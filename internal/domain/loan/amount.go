package loan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit token quantity. It is stored as a decimal
// string so MySQL and SQLite both round-trip the full range.
type Amount struct{ v uint256.Int }

func NewAmount(x uint64) Amount {
	var a Amount
	a.v.SetUint64(x)
	return a
}

// ParseAmount reads a base-10 string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	s = strings.TrimSpace(s)
	if s == "" {
		return a, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if err := a.v.SetFromDecimal(s); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return a, nil
}

// AmountFromBig rejects negative values and anything wider than 256 bits.
func AmountFromBig(b *big.Int) (Amount, error) {
	var a Amount
	if b == nil {
		return a, nil
	}
	if b.Sign() < 0 {
		return a, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, b)
	}
	if overflow := a.v.SetFromBig(b); overflow {
		return a, ErrArithmeticOverflow
	}
	return a, nil
}

func AmountFromUint256(x *uint256.Int) Amount {
	var a Amount
	if x != nil {
		a.v.Set(x)
	}
	return a
}

// Uint256 returns a copy safe to mutate.
func (a Amount) Uint256() *uint256.Int { return new(uint256.Int).Set(&a.v) }

func (a Amount) Big() *big.Int { return a.v.ToBig() }

func (a Amount) String() string { return a.v.Dec() }

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Add returns a+b, failing on 256-bit overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrArithmeticOverflow
	}
	return out, nil
}

// Sub returns a-b, failing when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrArithmeticOverflow
	}
	return out, nil
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		a.v.Clear()
		return nil
	case string:
		return a.scanString(v)
	case []byte:
		return a.scanString(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: negative amount %d", ErrInvalidAmount, v)
		}
		a.v.SetUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("loan: cannot scan %T into Amount", src)
	}
}

func (a *Amount) scanString(s string) error {
	if s == "" {
		a.v.Clear()
		return nil
	}
	return a.v.SetFromDecimal(s)
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) { return a.v.Dec(), nil }

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.v.Dec()) }

// UnmarshalJSON accepts both "123" and 123.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		a.v.Clear()
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
