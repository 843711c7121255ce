package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

const testSeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testSeed, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testSeed {
		t.Errorf("decrypted seed = %s, want %s", got, testSeed)
	}
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	blob, err := EncryptKey(testSeed, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	if _, err := DecryptKey(blob, "hunter3"); err == nil {
		t.Fatal("DecryptKey succeeded with wrong password")
	}
}

func TestEncryptRejectsBadSeed(t *testing.T) {
	for _, seed := range []string{"", "zz", testSeed[:32]} {
		if _, err := EncryptKey(seed, "pw"); err == nil {
			t.Errorf("EncryptKey(%q) succeeded, want error", seed)
		}
	}
}

func TestLoadKeyFromRawSeed(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawSeed: "0x" + testSeed})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}

	seed, _ := hex.DecodeString(testSeed)
	want := ed25519.NewKeyFromSeed(seed)
	if !key.Equal(want) {
		t.Error("loaded key does not match seed")
	}
}

func TestLoadKeyWithoutSourceFails(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	if err == nil || !strings.Contains(err.Error(), "no signing key source") {
		t.Fatalf("err = %v, want no-source error", err)
	}
}
