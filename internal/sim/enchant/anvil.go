package enchant

import (
	"enchantedblocks.dev/internal/sim/host"
)

// MaterialInfo supplies the item-durability facts anvil math needs. The
// catalog package implements it.
type MaterialInfo interface {
	MaxDurability(m host.Material) int
	// RepairMaterial returns the material that repairs m, if any.
	RepairMaterial(m host.Material) (host.Material, bool)
	IsBook(m host.Material) bool
}

// AnvilResult is the outcome of one anvil combination. An empty Result means
// the inputs do not combine; that is a no-op, not an error.
type AnvilResult struct {
	Result      host.ItemStack
	Cost        int
	RepairCount int
}

// AnvilOperation describes one anvil computation's behavior knobs. A sealed
// operation (see Vanilla) panics on mutation; shared configuration must not
// be edited in place.
type AnvilOperation struct {
	materials MaterialInfo
	defs      map[host.Enchant]Enchantment

	combineEnchants bool
	mergeRepairs    bool
	enchantApplies  func(e Enchantment, target *host.ItemStack) bool
	enchantConflict func(a, b Enchantment) bool
	enchantMaxLevel func(e Enchantment) int
	combines        func(base, added *host.ItemStack) bool
	repairs         func(base, added *host.ItemStack) bool
	renameText      string

	sealed bool
}

// NewAnvilOperation returns a fully permissive operation: everything
// combines, conflicts are ignored and levels are uncapped. Callers restrict
// it through the setters.
func NewAnvilOperation(materials MaterialInfo, defs map[host.Enchant]Enchantment) *AnvilOperation {
	return &AnvilOperation{
		materials:       materials,
		defs:            defs,
		combineEnchants: true,
		mergeRepairs:    true,
		enchantApplies:  func(Enchantment, *host.ItemStack) bool { return true },
		enchantConflict: func(Enchantment, Enchantment) bool { return false },
		enchantMaxLevel: func(Enchantment) int { return int(^uint16(0) >> 1) },
		combines:        func(*host.ItemStack, *host.ItemStack) bool { return true },
		repairs: func(base, added *host.ItemStack) bool {
			rm, ok := materials.RepairMaterial(base.Material)
			return ok && rm == added.Material
		},
	}
}

// Vanilla returns a sealed operation replicating standard game behavior:
// conflicts respected, levels capped, books merge at matched level.
func Vanilla(materials MaterialInfo, defs map[host.Enchant]Enchantment) *AnvilOperation {
	op := NewAnvilOperation(materials, defs)
	op.enchantConflict = DefaultIncompatibility
	op.enchantMaxLevel = func(e Enchantment) int { return e.MaxLevel }
	op.combines = func(base, added *host.ItemStack) bool {
		if base.Material == added.Material || materials.IsBook(added.Material) {
			return true
		}
		rm, ok := materials.RepairMaterial(base.Material)
		return ok && rm == added.Material
	}
	op.sealed = true
	return op
}

func (op *AnvilOperation) mutable() {
	if op.sealed {
		panic("enchant: mutation of sealed AnvilOperation")
	}
}

func (op *AnvilOperation) SetCombineEnchants(v bool) { op.mutable(); op.combineEnchants = v }
func (op *AnvilOperation) SetMergeRepairs(v bool)    { op.mutable(); op.mergeRepairs = v }
func (op *AnvilOperation) SetRenameText(v string)    { op.mutable(); op.renameText = v }

func (op *AnvilOperation) SetEnchantApplies(fn func(e Enchantment, target *host.ItemStack) bool) {
	op.mutable()
	op.enchantApplies = fn
}

func (op *AnvilOperation) SetEnchantConflicts(fn func(a, b Enchantment) bool) {
	op.mutable()
	op.enchantConflict = fn
}

func (op *AnvilOperation) SetEnchantMaxLevel(fn func(e Enchantment) int) {
	op.mutable()
	op.enchantMaxLevel = fn
}

func (op *AnvilOperation) SetMaterialCombines(fn func(base, added *host.ItemStack) bool) {
	op.mutable()
	op.combines = fn
}

func (op *AnvilOperation) SetMaterialRepairs(fn func(base, added *host.ItemStack) bool) {
	op.mutable()
	op.repairs = fn
}

// Apply merges two items. The zero AnvilResult (empty stack) is returned when
// the material predicate rejects the pair.
func (op *AnvilOperation) Apply(base, added *host.ItemStack) AnvilResult {
	if base.Empty() || added.Empty() || !op.combines(base, added) {
		return AnvilResult{}
	}

	out := AnvilResult{Result: *base.Clone()}
	out.Cost = base.RepairCost + added.RepairCost

	switch {
	case op.repairs(base, added):
		op.repairWithMaterial(&out, base, added)
	case op.mergeRepairs && base.Material == added.Material && op.materials.MaxDurability(base.Material) > 0:
		op.repairWithMerge(&out, base, added)
	}

	if op.combineEnchants && (base.Material == added.Material || op.materials.IsBook(added.Material)) {
		op.mergeEnchants(&out, base, added)
	}

	if op.renameText != "" && op.renameText != base.Name {
		out.Result.Name = op.renameText
		out.Cost++
	}
	return out
}

// repairWithMaterial consumes repair items, each restoring a quarter of max
// durability, bounded by how many the second stack holds.
func (op *AnvilOperation) repairWithMaterial(out *AnvilResult, base, added *host.ItemStack) {
	maxDurability := op.materials.MaxDurability(base.Material)
	if maxDurability <= 0 || base.Damage <= 0 {
		return
	}
	perItem := maxDurability / 4
	if perItem <= 0 {
		perItem = 1
	}
	damage := base.Damage
	count := 0
	for damage > 0 && count < added.Amount {
		damage -= perItem
		count++
	}
	if damage < 0 {
		damage = 0
	}
	out.Result.Damage = damage
	out.RepairCount = count
	out.Cost += count
}

// repairWithMerge sums both items' remaining durability plus a 12% bonus.
func (op *AnvilOperation) repairWithMerge(out *AnvilResult, base, added *host.ItemStack) {
	maxDurability := op.materials.MaxDurability(base.Material)
	if maxDurability <= 0 {
		return
	}
	remaining := (maxDurability - base.Damage) + (maxDurability - added.Damage)
	remaining += maxDurability * 12 / 100
	damage := maxDurability - remaining
	if damage < 0 {
		damage = 0
	}
	if base.Damage > 0 && damage < base.Damage {
		out.Cost += 2
	}
	out.Result.Damage = damage
}

// mergeEnchants folds the second item's enchantments into the result:
// matching enchantments take the higher level, or one above when equal and
// below the configured cap.
func (op *AnvilOperation) mergeEnchants(out *AnvilResult, base, added *host.ItemStack) {
	book := op.materials.IsBook(added.Material)
	for id, addLevel := range added.Enchants {
		def, ok := op.defs[id]
		if !ok {
			def = Enchantment{ID: id, MaxLevel: addLevel}
		}
		if !op.enchantApplies(def, base) {
			continue
		}
		conflicts := false
		for existing := range base.Enchants {
			if existing == id {
				continue
			}
			other, ok := op.defs[existing]
			if !ok {
				continue
			}
			if op.enchantConflict(def, other) {
				conflicts = true
				break
			}
		}
		if conflicts {
			// Vanilla charges a level for a rejected enchantment.
			out.Cost++
			continue
		}

		level := addLevel
		if baseLevel, ok := base.Enchants[id]; ok {
			switch {
			case baseLevel > level:
				level = baseLevel
			case baseLevel == level:
				level++
			}
		}
		if limit := op.enchantMaxLevel(def); level > limit {
			level = limit
		}
		out.Result.SetEnchant(id, level)
		out.Cost += level * def.costMultiplier(book)
	}
}
