package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow  = errors.New("money: amount overflows 256 bits")
	ErrUnderflow = errors.New("money: amount underflows zero")
)

// Amount is an unsigned 256-bit quantity in an asset's base units.
// The zero value is a valid zero amount.
type Amount struct{ v uint256.Int }

func Zero() Amount { return Amount{} }

func New(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Units returns n whole tokens of an asset with the given decimals.
func Units(n uint64, decimals uint8) Amount {
	a := New(n)
	a.v.Mul(&a.v, Pow10(decimals))
	return a
}

func FromUint256(x *uint256.Int) Amount {
	var a Amount
	if x != nil {
		a.v.Set(x)
	}
	return a
}

func FromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, ErrUnderflow
	}
	x, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, ErrOverflow
	}
	return FromUint256(x), nil
}

// Parse reads a base-10 integer string.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, errors.New("money: empty amount")
	}
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromUint256(x), nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Pow10 returns 10^n as a fresh value.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// Int returns a copy of the underlying integer.
func (a Amount) Int() *uint256.Int { return new(uint256.Int).Set(&a.v) }

func (a Amount) IsZero() bool           { return a.v.IsZero() }
func (a Amount) Cmp(b Amount) int       { return a.v.Cmp(&b.v) }
func (a Amount) Lt(b Amount) bool       { return a.v.Lt(&b.v) }
func (a Amount) Gt(b Amount) bool       { return a.v.Gt(&b.v) }
func (a Amount) Eq(b Amount) bool       { return a.v.Eq(&b.v) }
func (a Amount) String() string         { return a.v.Dec() }
func (a Amount) Big() *big.Int          { return a.v.ToBig() }
func (a Amount) Uint64() (uint64, bool) { return a.v.Uint64(), a.v.IsUint64() }

func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return out, nil
}

// SubFloor returns a-b, or zero when b exceeds a.
func (a Amount) SubFloor(b Amount) Amount {
	if a.Lt(b) {
		return Amount{}
	}
	out, _ := a.Sub(b)
	return out
}

func Min(a, b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

func Max(a, b Amount) Amount {
	if a.Gt(b) {
		return a
	}
	return b
}

// Decimal renders the amount in whole-token units for display.
func (a Amount) Decimal(decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(a.v.ToBig(), -int32(decimals))
}

// Value stores the amount as a decimal string; columns are DECIMAL(78,0).
func (a Amount) Value() (driver.Value, error) { return a.v.Dec(), nil }

func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case int64:
		if v < 0 {
			return ErrUnderflow
		}
		*a = New(uint64(v))
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	// some drivers hand back DECIMAL(78,0) with a trailing fraction
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	p, err := Parse(s)
	if err != nil {
		return err
	}
	*a = p
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.v.Dec()) }

// UnmarshalJSON accepts a quoted decimal string or a bare integer literal.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	p, err := Parse(s)
	if err != nil {
		return err
	}
	*a = p
	return nil
}
