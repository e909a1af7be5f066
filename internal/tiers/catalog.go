package tiers

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

//go:embed tiers.yaml
var defaultFiles embed.FS

var (
	ErrUnknownTier = errors.New("unknown tier")
	ErrBadRound    = errors.New("round out of range")
)

// Tier holds the entry fee and the per-round roast prompts for one tier.
type Tier struct {
	EntryFee int      `yaml:"entry_fee"`
	Prompts  []string `yaml:"prompts"`
}

// Catalog is the tier configuration loaded from embedded defaults and an
// optional override directory. Immutable after New.
type Catalog struct {
	RoundsPerBattle int
	PlatformFee     float64

	tiers map[string]Tier
}

type fileSchema struct {
	RoundsPerBattle int             `yaml:"rounds_per_battle"`
	PlatformFee     float64         `yaml:"platform_fee"`
	Tiers           map[string]Tier `yaml:"tiers"`
}

// New loads the embedded defaults and then applies overrides from dir if provided.
// Override files replace whole tiers by name; top-level fields win last-file-wins.
func New(overrideDir string) (*Catalog, error) {
	raw, err := fs.ReadFile(defaultFiles, "tiers.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded tiers: %w", err)
	}
	var s fileSchema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse embedded tiers: %w", err)
	}

	c := &Catalog{
		RoundsPerBattle: s.RoundsPerBattle,
		PlatformFee:     s.PlatformFee,
		tiers:           s.Tiers,
	}
	if c.tiers == nil {
		c.tiers = make(map[string]Tier)
	}

	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read tier override dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var s fileSchema
		if err := yaml.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if s.RoundsPerBattle > 0 {
			c.RoundsPerBattle = s.RoundsPerBattle
		}
		if s.PlatformFee > 0 {
			c.PlatformFee = s.PlatformFee
		}
		for tn, t := range s.Tiers {
			c.tiers[tn] = t
		}
	}
	return nil
}

func (c *Catalog) validate() error {
	if c.RoundsPerBattle <= 0 {
		return errors.New("rounds_per_battle must be positive")
	}
	if c.PlatformFee < 0 || c.PlatformFee >= 1 {
		return errors.New("platform_fee must be in [0, 1)")
	}
	if len(c.tiers) == 0 {
		return errors.New("no tiers configured")
	}
	for name, t := range c.tiers {
		if t.EntryFee <= 0 {
			return fmt.Errorf("tier %s: entry_fee must be positive", name)
		}
		if len(t.Prompts) != c.RoundsPerBattle {
			return fmt.Errorf("tier %s: need %d prompts, have %d", name, c.RoundsPerBattle, len(t.Prompts))
		}
		for i, p := range t.Prompts {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("tier %s: prompt %d is empty", name, i+1)
			}
		}
	}
	return nil
}

// Names returns the configured tier names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.tiers))
	for name := range c.tiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the tier exists.
func (c *Catalog) Has(tier string) bool {
	_, ok := c.tiers[tier]
	return ok
}

// Prompt returns the roast prompt for a 1-based round number.
func (c *Catalog) Prompt(tier string, round int) (string, error) {
	t, ok := c.tiers[tier]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	if round < 1 || round > len(t.Prompts) {
		return "", fmt.Errorf("%w: %d", ErrBadRound, round)
	}
	return t.Prompts[round-1], nil
}

// EntryFee returns the entry fee for a tier.
func (c *Catalog) EntryFee(tier string) (int, error) {
	t, ok := c.tiers[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	return t.EntryFee, nil
}
