package economics

import (
	"fmt"
	"math/bits"

	"github.com/protocolsim/idlarena/internal/domain"
)

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("economics: add %d+%d: %w", a, b, domain.ErrArithmeticOverflow)
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmeticOverflow on underflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("economics: sub %d-%d: %w", a, b, domain.ErrArithmeticOverflow)
	}
	return diff, nil
}

// MulDiv computes a*b/den with a 128-bit intermediate and truncating
// division. Fails if den is zero or the quotient exceeds 64 bits.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, fmt.Errorf("economics: muldiv %d*%d/0: %w", a, b, domain.ErrArithmeticOverflow)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, fmt.Errorf("economics: muldiv %d*%d/%d: %w", a, b, den, domain.ErrArithmeticOverflow)
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, nil
}
