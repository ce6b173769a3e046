package domain

import (
	"fmt"
	"math/big"
	"strings"
)

var (
	two64     = new(big.Int).Lsh(big.NewInt(1), 64)
	mask64    = new(big.Int).Sub(two64, big.NewInt(1))
	maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minAmount = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Amount is a signed 128-bit quantity held as two's complement halves, so
// values compare with == and round-trip exactly. Text form is base 10.
type Amount struct {
	Hi int64
	Lo uint64
}

func NewAmount(v int64) Amount {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Amount{Hi: hi, Lo: uint64(v)}
}

// ParseAmount parses a base 10 integer in the signed 128-bit range.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return AmountFromBig(v)
}

func AmountFromBig(v *big.Int) (Amount, error) {
	if v.Cmp(minAmount) < 0 || v.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("amount %s out of 128-bit range", v)
	}
	lo := new(big.Int).And(v, mask64).Uint64()
	hi := new(big.Int).Rsh(v, 64).Int64()
	return Amount{Hi: hi, Lo: lo}, nil
}

func (a Amount) Big() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(a.Hi), 64)
	return v.Add(v, new(big.Int).SetUint64(a.Lo))
}

func (a Amount) Sign() int { return a.Big().Sign() }

func (a Amount) String() string { return a.Big().String() }

func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalText(text []byte) error {
	v, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalJSON accepts both a quoted decimal string and a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	return a.UnmarshalText([]byte(strings.Trim(s, `"`)))
}
