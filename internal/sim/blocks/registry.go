package blocks

import (
	"log"
	"sync"

	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/tuning"
)

// Factory builds a variant instance for a placed block. It may refuse by
// returning nil, e.g. when the item lacks the enchantments the variant cares
// about.
type Factory func(reg *Registration, key host.BlockKey, item *host.ItemStack) EnchantableBlock

// Registration describes one block variant: the materials it claims, the
// enchantments it reads off the item, and the factory that builds instances.
// Immutable after Register except for the cached tuning section, which
// InvalidateConfig drops.
type Registration struct {
	Name      string
	Materials []host.Material
	Enchants  []host.Enchant
	New       Factory

	mu     sync.Mutex
	source func() *tuning.Tuning
	config *tuning.BlockTuning
}

// Config returns the variant's tuning section, parsing it on first access
// and caching until the next reload.
func (r *Registration) Config() tuning.BlockTuning {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		var cfg tuning.BlockTuning
		if r.source != nil {
			cfg = r.source().Block(r.Name)
		}
		r.config = &cfg
	}
	return *r.config
}

func (r *Registration) invalidateConfig() {
	r.mu.Lock()
	r.config = nil
	r.mu.Unlock()
}

// HasMaterial reports whether the registration claims a material.
func (r *Registration) HasMaterial(m host.Material) bool {
	for _, c := range r.Materials {
		if c == m {
			return true
		}
	}
	return false
}

// Registry maps materials to the registration responsible for them.
type Registry struct {
	// Logf receives override warnings; defaults to log.Printf.
	Logf func(format string, args ...any)

	source     func() *tuning.Tuning
	byMaterial map[host.Material]*Registration
	all        []*Registration
}

// NewRegistry builds an empty registry. source supplies the current tuning
// document; registrations cache their section from it until Reload.
func NewRegistry(source func() *tuning.Tuning) *Registry {
	return &Registry{
		Logf:       log.Printf,
		source:     source,
		byMaterial: map[host.Material]*Registration{},
	}
}

// Register claims every material the registration declares. A material
// already claimed is overwritten with a warning naming both variants.
func (reg *Registry) Register(r *Registration) {
	r.source = reg.source
	for _, m := range r.Materials {
		if prev, ok := reg.byMaterial[m]; ok && prev != r {
			reg.Logf("registry: %s overrides %s for material %s", r.Name, prev.Name, m)
		}
		reg.byMaterial[m] = r
	}
	reg.all = append(reg.all, r)
}

// Get returns the registration claiming a material.
func (reg *Registry) Get(m host.Material) (*Registration, bool) {
	r, ok := reg.byMaterial[m]
	return r, ok
}

// Reload drops every registration's cached tuning section so the next Config
// call reparses. The material mapping itself is untouched.
func (reg *Registry) Reload() {
	for _, r := range reg.all {
		r.invalidateConfig()
	}
}

// SetSource swaps the tuning document supplier, e.g. after an operator
// reload, and drops all cached sections.
func (reg *Registry) SetSource(source func() *tuning.Tuning) {
	reg.source = source
	for _, r := range reg.all {
		r.source = source
		r.invalidateConfig()
	}
}
