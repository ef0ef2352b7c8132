// Package blocks tracks world blocks that carry enchantment metadata. A
// registry maps block materials to their variant handler, and the manager
// moves block records through their lifecycle: placed, looked up, persisted
// across chunk unloads, and destroyed.
package blocks

import (
	"enchantedblocks.dev/internal/sim/host"
)

// EnchantableBlock is one live block that carries enchantment state. An
// instance exists only while its chunk is loaded; the manager owns it via the
// block cache and reconstructs it from storage on chunk load.
type EnchantableBlock interface {
	Key() host.BlockKey
	// Item is the stack the block was placed from, amount normalized to 1.
	// Variants store transient state in its enchantment levels, so callers
	// must not retain the pointer across lifecycle calls.
	Item() *host.ItemStack
	Registration() *Registration
	Dirty() bool
	SetDirty(bool)
}

// blockBase carries the state every variant shares. Variants embed it.
type blockBase struct {
	key   host.BlockKey
	item  *host.ItemStack
	reg   *Registration
	dirty bool
}

func (b *blockBase) Key() host.BlockKey          { return b.key }
func (b *blockBase) Item() *host.ItemStack       { return b.item }
func (b *blockBase) Registration() *Registration { return b.reg }
func (b *blockBase) Dirty() bool                 { return b.dirty }
func (b *blockBase) SetDirty(d bool)             { b.dirty = d }
