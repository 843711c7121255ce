package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a token quantity in base units. Amounts are unsigned 64-bit
// integers, mirroring the on-chain accounting; all arithmetic on them goes
// through the economics package's checked helpers.
//
// Amounts serialize as decimal strings so result artifacts survive JSON
// consumers that parse numbers as float64.
type Amount uint64

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(a), 10) + `"`), nil
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("domain: parse amount %q: %w", s, err)
	}
	*a = Amount(v)
	return nil
}

// PnL is a signed profit-and-loss value in token base units. Like Amount it
// serializes as a decimal string.
type PnL int64

// MarshalJSON encodes the PnL as a decimal string.
func (p PnL) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(p), 10) + `"`), nil
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (p *PnL) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("domain: parse pnl %q: %w", s, err)
	}
	*p = PnL(v)
	return nil
}
