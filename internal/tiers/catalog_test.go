package tiers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedCatalog(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.RoundsPerBattle != 3 {
		t.Fatalf("RoundsPerBattle = %d, want 3", c.RoundsPerBattle)
	}
	if c.PlatformFee != 0.05 {
		t.Fatalf("PlatformFee = %v, want 0.05", c.PlatformFee)
	}

	fees := map[string]int{"Bronze": 2000, "Silver": 6000, "Gold": 8000, "Diamond": 10000}
	for tier, want := range fees {
		got, err := c.EntryFee(tier)
		if err != nil {
			t.Fatalf("EntryFee(%s): %v", tier, err)
		}
		if got != want {
			t.Errorf("EntryFee(%s) = %d, want %d", tier, got, want)
		}
	}

	for _, tier := range c.Names() {
		for round := 1; round <= c.RoundsPerBattle; round++ {
			p, err := c.Prompt(tier, round)
			if err != nil {
				t.Fatalf("Prompt(%s, %d): %v", tier, round, err)
			}
			if p == "" {
				t.Fatalf("Prompt(%s, %d) is empty", tier, round)
			}
		}
	}

	if got, _ := c.Prompt("Bronze", 1); got != "Roast your opponent's fashion sense" {
		t.Errorf("Bronze round 1 prompt = %q", got)
	}
}

func TestPromptErrors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Prompt("Platinum", 1); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("unknown tier: err = %v", err)
	}
	if _, err := c.Prompt("Bronze", 0); !errors.Is(err, ErrBadRound) {
		t.Errorf("round 0: err = %v", err)
	}
	if _, err := c.Prompt("Bronze", 4); !errors.Is(err, ErrBadRound) {
		t.Errorf("round 4: err = %v", err)
	}
	if _, err := c.EntryFee("Platinum"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("unknown tier fee: err = %v", err)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := `
tiers:
  Bronze:
    entry_fee: 500
    prompts:
      - "one"
      - "two"
      - "three"
`
	if err := os.WriteFile(filepath.Join(dir, "bronze.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if fee, _ := c.EntryFee("Bronze"); fee != 500 {
		t.Errorf("overridden Bronze fee = %d, want 500", fee)
	}
	if p, _ := c.Prompt("Bronze", 2); p != "two" {
		t.Errorf("overridden Bronze prompt 2 = %q", p)
	}
	// Untouched tiers keep defaults.
	if fee, _ := c.EntryFee("Gold"); fee != 8000 {
		t.Errorf("Gold fee = %d, want 8000", fee)
	}
}

func TestOverrideValidation(t *testing.T) {
	dir := t.TempDir()
	bad := `
tiers:
  Bronze:
    entry_fee: 500
    prompts:
      - "only one"
`
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Fatal("expected validation error for wrong prompt count")
	}
}
