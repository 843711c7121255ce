package domain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestAmountSerializesAsString(t *testing.T) {
	b, err := json.Marshal(Amount(math.MaxUint64))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"18446744073709551615"` {
		t.Errorf("marshal = %s, want quoted decimal", b)
	}

	var a Amount
	if err := json.Unmarshal(b, &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a != math.MaxUint64 {
		t.Errorf("round trip = %d, want MaxUint64", a)
	}
}

func TestAmountAcceptsBareNumber(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`1000000`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a != 1_000_000 {
		t.Errorf("a = %d, want 1000000", a)
	}

	if err := json.Unmarshal([]byte(`"-5"`), &a); err == nil {
		t.Error("negative amount accepted")
	}
}

func TestPnLKeepsSign(t *testing.T) {
	b, err := json.Marshal(PnL(-1234))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"-1234"` {
		t.Errorf("marshal = %s, want quoted -1234", b)
	}

	var p PnL
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != -1234 {
		t.Errorf("round trip = %d, want -1234", p)
	}
}
