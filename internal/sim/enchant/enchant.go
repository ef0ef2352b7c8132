// Package enchant implements the fixed-formula enchantment arithmetic used by
// enchanting tables and anvils.
package enchant

import "enchantedblocks.dev/internal/sim/host"

// Enchantment describes one enchantment's selection and cost parameters.
// Thresholds holds the minimum effective enchanting level per enchantment
// level: Thresholds[i] is the floor for level i+1.
type Enchantment struct {
	ID             host.Enchant
	Weight         int
	MaxLevel       int
	Thresholds     []int
	Conflicts      []host.Enchant
	CostMultiplier int
}

// LevelAt returns the enchantment level offered at an effective enchanting
// level, or 0 when below the lowest threshold. Overlapping ranges resolve to
// the upper value.
func (e Enchantment) LevelAt(effective int) int {
	level := 0
	for i, min := range e.Thresholds {
		if effective >= min {
			level = i + 1
		}
	}
	if e.MaxLevel > 0 && level > e.MaxLevel {
		level = e.MaxLevel
	}
	return level
}

func (e Enchantment) ConflictsWith(other host.Enchant) bool {
	for _, c := range e.Conflicts {
		if c == other {
			return true
		}
	}
	return false
}

// DefaultIncompatibility treats an enchantment as incompatible with itself
// and with anything in either side's conflict list.
func DefaultIncompatibility(a, b Enchantment) bool {
	if a.ID == b.ID {
		return true
	}
	return a.ConflictsWith(b.ID) || b.ConflictsWith(a.ID)
}

func (e Enchantment) costMultiplier(book bool) int {
	m := e.CostMultiplier
	if m <= 0 {
		m = 1
	}
	if book {
		m /= 2
		if m < 1 {
			m = 1
		}
	}
	return m
}
