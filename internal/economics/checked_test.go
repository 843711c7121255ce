package economics

import (
	"errors"
	"math"
	"testing"

	"github.com/protocolsim/idlarena/internal/domain"
)

func TestAdd(t *testing.T) {
	if got, err := Add(2, 3); err != nil || got != 5 {
		t.Errorf("Add(2,3) = %d, %v", got, err)
	}
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Errorf("Add overflow err = %v, want ErrArithmeticOverflow", err)
	}
}

func TestSub(t *testing.T) {
	if got, err := Sub(5, 3); err != nil || got != 2 {
		t.Errorf("Sub(5,3) = %d, %v", got, err)
	}
	if _, err := Sub(3, 5); !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Errorf("Sub underflow err = %v, want ErrArithmeticOverflow", err)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, den uint64
		want      uint64
		wantErr   bool
	}{
		{110, 500, 1000, 55, false},
		{7, 3, 2, 10, false}, // truncates toward zero
		{math.MaxUint64, math.MaxUint64, math.MaxUint64, math.MaxUint64, false},
		{math.MaxUint64, 2, 1, 0, true}, // quotient exceeds 64 bits
		{1, 1, 0, 0, true},              // zero denominator
	}
	for _, tt := range tests {
		got, err := MulDiv(tt.a, tt.b, tt.den)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrArithmeticOverflow) {
				t.Errorf("MulDiv(%d,%d,%d) err = %v, want ErrArithmeticOverflow", tt.a, tt.b, tt.den, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("MulDiv(%d,%d,%d) = %d, %v, want %d", tt.a, tt.b, tt.den, got, err, tt.want)
		}
	}
}
