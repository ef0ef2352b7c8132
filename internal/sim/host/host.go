// Package host defines the boundary to the game engine that owns worlds,
// blocks and inventories. The engine lives outside this module; everything
// here is either a plain value type or a narrow interface the engine adapter
// implements.
package host

import "fmt"

type Material string

type Enchant string

type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

// BlockKey identifies one block position in one world.
type BlockKey struct {
	World string
	Pos   Vec3i
}

// ChunkKey identifies one 16x16 column of blocks in one world.
type ChunkKey struct {
	World  string
	CX, CZ int
}

func ChunkOf(k BlockKey) ChunkKey {
	return ChunkKey{World: k.World, CX: floorDiv(k.Pos.X, 16), CZ: floorDiv(k.Pos.Z, 16)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ItemStack is a quantity of one material plus its metadata. Enchantments map
// name to level; a level of 0 is a valid stored value (the freeze marker uses
// it), so presence in the map is meaningful on its own.
type ItemStack struct {
	Material   Material
	Amount     int
	Data       int16 // item data value; -1 acts as a wildcard in recipe inputs
	Damage     int
	RepairCost int
	Name       string
	Enchants   map[Enchant]int
}

func (s *ItemStack) Empty() bool {
	return s == nil || s.Material == "" || s.Amount <= 0
}

func (s *ItemStack) Enchanted() bool {
	return s != nil && len(s.Enchants) > 0
}

// EnchantLevel returns the stored level, or -1 if the enchantment is absent.
// Callers that only care about effect strength should treat negatives as 0.
func (s *ItemStack) EnchantLevel(e Enchant) int {
	if s == nil {
		return -1
	}
	lvl, ok := s.Enchants[e]
	if !ok {
		return -1
	}
	return lvl
}

// Modifier is EnchantLevel clamped to [0, n): absent reads as 0.
func (s *ItemStack) Modifier(e Enchant) int {
	if lvl := s.EnchantLevel(e); lvl > 0 {
		return lvl
	}
	return 0
}

func (s *ItemStack) SetEnchant(e Enchant, level int) {
	if s.Enchants == nil {
		s.Enchants = map[Enchant]int{}
	}
	s.Enchants[e] = level
}

func (s *ItemStack) RemoveEnchant(e Enchant) {
	delete(s.Enchants, e)
}

func (s *ItemStack) Clone() *ItemStack {
	if s == nil {
		return nil
	}
	out := *s
	if s.Enchants != nil {
		out.Enchants = make(map[Enchant]int, len(s.Enchants))
		for k, v := range s.Enchants {
			out.Enchants[k] = v
		}
	}
	return &out
}

// Similar reports whether two stacks are the same item ignoring amount.
func (s *ItemStack) Similar(o *ItemStack) bool {
	if s.Empty() || o.Empty() {
		return s.Empty() && o.Empty()
	}
	if s.Material != o.Material || s.Data != o.Data || s.Name != o.Name {
		return false
	}
	if len(s.Enchants) != len(o.Enchants) {
		return false
	}
	for k, v := range s.Enchants {
		if ov, ok := o.Enchants[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
