package raydium

import (
	"path/filepath"
	"testing"
)

func TestLoadOverrides(t *testing.T) {
	registry := DefaultRegistry()

	path := filepath.Join("testdata", "registry_overrides.yaml")
	if err := registry.LoadOverrides(path); err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}

	forked := "FoRk1111111111111111111111111111111111111111"
	if !registry.Registered(forked) {
		t.Fatalf("program %s not registered after override load", forked)
	}

	payload := make([]byte, 17)
	payload[0] = 9
	rule, ok, err := registry.Lookup(forked, payload)
	if !ok || err != nil {
		t.Fatalf("Lookup() ok = %v, error = %v", ok, err)
	}
	if rule.Family != familyAmm {
		t.Errorf("rule family = %v, want amm", rule.Family.Name)
	}
	if rule.LimitSide != LimitMintOut {
		t.Errorf("LimitSide = %v, want %v", rule.LimitSide, LimitMintOut)
	}

	// Built-in programs survive the merge.
	if !registry.Registered(ProgramIDV4) {
		t.Error("built-in V4 program lost after override load")
	}
}

func TestLoadOverridesMissingFile(t *testing.T) {
	registry := NewRegistry()
	if err := registry.LoadOverrides(filepath.Join("testdata", "absent.yaml")); err == nil {
		t.Error("expected error for missing overrides file")
	}
}
