// Package tuning loads the operator-editable runtime configuration.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Region cache behavior.
	CacheRetentionMs int `yaml:"cache_retention_ms"`
	CacheLazyCheckMs int `yaml:"cache_lazy_check_ms"`

	// Per-block-type settings keyed by variant name.
	Blocks map[string]BlockTuning `yaml:"blocks"`
}

type BlockTuning struct {
	Enabled   *bool                    `yaml:"enabled"`
	Overrides map[string]WorldOverride `yaml:"overrides"`

	// Furnace-specific knobs; ignored by other variants.
	Enchantability     int      `yaml:"enchantability"`
	FortuneList        []string `yaml:"fortune_list"`
	FortuneIsBlacklist bool     `yaml:"fortune_is_blacklist"`
}

type WorldOverride struct {
	Enabled *bool `yaml:"enabled"`
}

func Load(path string) (*Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return &t, nil
}

// Default returns the built-in configuration used when no file exists.
func Default() *Tuning {
	t := &Tuning{}
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.CacheRetentionMs <= 0 {
		t.CacheRetentionMs = 300_000
	}
	if t.CacheLazyCheckMs < 0 {
		t.CacheLazyCheckMs = 0
	}
	if t.Blocks == nil {
		t.Blocks = map[string]BlockTuning{}
	}
}

func (t *Tuning) CacheRetention() time.Duration {
	return time.Duration(t.CacheRetentionMs) * time.Millisecond
}

func (t *Tuning) CacheLazyCheck() time.Duration {
	return time.Duration(t.CacheLazyCheckMs) * time.Millisecond
}

// Block returns the tuning section for a variant name; missing sections read
// as all defaults.
func (t *Tuning) Block(name string) BlockTuning {
	if t == nil {
		return BlockTuning{}
	}
	return t.Blocks[name]
}

// EnabledIn resolves the per-world enable flag: world override first, then
// the block-level flag, then enabled.
func (b BlockTuning) EnabledIn(world string) bool {
	if o, ok := b.Overrides[world]; ok && o.Enabled != nil {
		return *o.Enabled
	}
	if b.Enabled != nil {
		return *b.Enabled
	}
	return true
}
