package enchant

import (
	"math"
	"math/rand"

	"enchantedblocks.dev/internal/sim/host"
)

// Operation is one enchanting-table computation: which enchantments are on
// offer, which button was pressed, and the randomness seed. The value is
// consumed once per Apply and may be reused with different seeds.
type Operation struct {
	Enchantments   []Enchantment
	ButtonLevel    int
	Enchantability int
	Seed           int64
	// Incompatible decides whether two enchantments may co-occur; nil means
	// DefaultIncompatibility.
	Incompatible func(a, b Enchantment) bool
}

// ButtonLevels derives the three displayed button levels from the bookshelf
// count, which is capped at 15.
func ButtonLevels(rnd *rand.Rand, shelves int) [3]int {
	if shelves > 15 {
		shelves = 15
	}
	var out [3]int
	for slot := 0; slot < 3; slot++ {
		i := rnd.Intn(8) + 1 + (shelves >> 1) + rnd.Intn(shelves+1)
		switch slot {
		case 0:
			out[slot] = max(i/3, 1)
		case 1:
			out[slot] = i*2/3 + 1
		default:
			out[slot] = max(i, shelves*2)
		}
	}
	return out
}

// Apply runs the table formula and returns the selected enchantments with
// their levels. An empty result is valid: low effective levels may offer
// nothing at all.
func (op Operation) Apply() map[host.Enchant]int {
	rnd := rand.New(rand.NewSource(op.Seed))
	incompatible := op.Incompatible
	if incompatible == nil {
		incompatible = DefaultIncompatibility
	}

	effective := op.effectiveLevel(rnd)

	candidates := make([]Enchantment, 0, len(op.Enchantments))
	for _, e := range op.Enchantments {
		if e.LevelAt(effective) > 0 {
			candidates = append(candidates, e)
		}
	}

	picked := map[host.Enchant]int{}
	for len(candidates) > 0 {
		if len(picked) > 0 {
			chance := float64(effective) / math.Pow(2, float64(len(picked))) / 50
			if rnd.Float64() >= chance {
				break
			}
		}
		e := weightedPick(rnd, candidates)
		picked[e.ID] = e.LevelAt(effective)

		next := candidates[:0]
		for _, c := range candidates {
			if c.ID == e.ID || incompatible(e, c) {
				continue
			}
			next = append(next, c)
		}
		candidates = next
	}
	return picked
}

// effectiveLevel is the internal random value driving which enchantments and
// levels are offered: button level + 1 + two enchantability draws, then an
// 85-115% bonus, floored to at least 1.
func (op Operation) effectiveLevel(rnd *rand.Rand) int {
	draw := float64(op.Enchantability/4 + 1)
	level := op.ButtonLevel + 1 + int(rnd.Float64()*draw) + int(rnd.Float64()*draw)
	bonus := (rnd.Float64()+rnd.Float64()-1)*0.15 + 1
	level = int(float64(level)*bonus + 0.5)
	if level < 1 {
		level = 1
	}
	return level
}

// weightedPick selects by fixed per-enchantment weight. If weights are
// exhausted it falls back to the first candidate rather than failing.
func weightedPick(rnd *rand.Rand, candidates []Enchantment) Enchantment {
	total := 0
	for _, e := range candidates {
		total += e.Weight
	}
	if total <= 0 {
		return candidates[0]
	}
	n := rnd.Intn(total) + 1
	for _, e := range candidates {
		if n > e.Weight {
			n -= e.Weight
			continue
		}
		return e
	}
	return candidates[0]
}
