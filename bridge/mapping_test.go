package bridge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSubjectMappings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.yaml")
	content := `mappings:
  - source: "raydium.swap"
    target: "archive.swap"
  - source: "raydium.debug"
    drop: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write mapping file: %v", err)
	}

	mappings, err := LoadSubjectMappings(path)
	if err != nil {
		t.Fatalf("LoadSubjectMappings() error = %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(mappings))
	}
	if mappings[0].Target != "archive.swap" {
		t.Fatalf("unexpected target %q", mappings[0].Target)
	}
	if !mappings[1].Drop {
		t.Fatalf("expected drop mapping")
	}
}

func TestLoadSubjectMappingsRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.yaml")
	content := `mappings:
  - source: "raydium.swap"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write mapping file: %v", err)
	}
	if _, err := LoadSubjectMappings(path); err == nil {
		t.Fatal("expected error for mapping without target or drop")
	}
}

func TestSubjectMapResolve(t *testing.T) {
	m, err := newSubjectMap([]SubjectMapping{
		{Source: "raydium.", Target: "archive."},
		{Source: "raydium.swap", Target: "archive.swaps"},
		{Source: "raydium.debug", Drop: true},
	})
	if err != nil {
		t.Fatalf("newSubjectMap() error = %v", err)
	}

	// Longest source prefix wins.
	subj, ok := m.resolve("raydium.swap")
	if !ok || subj != "archive.swaps" {
		t.Fatalf("resolve(raydium.swap) = %q ok=%t, want archive.swaps", subj, ok)
	}

	subj, ok = m.resolve("raydium.summary")
	if !ok || subj != "archive.summary" {
		t.Fatalf("resolve(raydium.summary) = %q ok=%t, want archive.summary", subj, ok)
	}

	if _, ok := m.resolve("raydium.debug"); ok {
		t.Fatal("expected drop rule to return ok=false")
	}

	subj, ok = m.resolve("other.subject")
	if !ok || subj != "other.subject" {
		t.Fatalf("resolve(other.subject) = %q ok=%t, want identity", subj, ok)
	}
}
