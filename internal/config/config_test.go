package config

import (
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "race"
	cfg.Simulation.Rounds = 0
	cfg.Agents = []AgentConfig{{Name: "solo"}}
	cfg.Decision.Provider = "psychic"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "rounds must be", "at least two", "unknown provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateDuplicateAgents(t *testing.T) {
	cfg := Defaults()
	cfg.Agents = []AgentConfig{{Name: "twin"}, {Name: "twin"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate name") {
		t.Fatalf("err = %v, want duplicate name", err)
	}
}

func TestValidateDevnetLedger(t *testing.T) {
	cfg := Defaults()
	cfg.Ledger.Mode = "devnet"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ledger:") {
		t.Fatalf("err = %v, want ledger requirements", err)
	}
}
