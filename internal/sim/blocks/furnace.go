package blocks

import (
	"enchantedblocks.dev/internal/sim/catalogs"
	"enchantedblocks.dev/internal/sim/host"
)

// Enchantments the furnace variant reads off its item. Silk touch doubles as
// the freeze marker: while a furnace with remaining burn time is broken, the
// remaining ticks are stored as the silk touch level (0 means present but
// not frozen).
const (
	EnchantEfficiency host.Enchant = "efficiency"
	EnchantUnbreaking host.Enchant = "unbreaking"
	EnchantFortune    host.Enchant = "fortune"
	EnchantSilkTouch  host.Enchant = "silk_touch"
)

// FurnaceVariant names the furnace registration in tuning and in persisted
// records.
const FurnaceVariant = "EnchantableFurnace"

// FurnaceRegistration claims the three furnace-family materials.
func FurnaceRegistration() *Registration {
	return &Registration{
		Name:      FurnaceVariant,
		Materials: []host.Material{"FURNACE", "BLAST_FURNACE", "SMOKER"},
		Enchants:  []host.Enchant{EnchantEfficiency, EnchantUnbreaking, EnchantFortune, EnchantSilkTouch},
		New:       NewFurnace,
	}
}

// Furnace is the furnace-family variant. Efficiency speeds cooking,
// unbreaking stretches fuel, fortune rolls bonus output, and silk touch
// enables freeze/resume of in-progress smelting across break and replace.
type Furnace struct {
	blockBase
	canPause bool
}

func NewFurnace(reg *Registration, key host.BlockKey, item *host.ItemStack) EnchantableBlock {
	f := &Furnace{
		blockBase: blockBase{key: key, item: item, reg: reg},
		canPause:  item.EnchantLevel(EnchantSilkTouch) >= 0,
	}
	// Old saves used level 1 as the bare capability marker.
	if f.canPause && item.EnchantLevel(EnchantSilkTouch) == 1 {
		item.SetEnchant(EnchantSilkTouch, 0)
		f.dirty = true
	}
	return f
}

func (f *Furnace) CanPause() bool { return f.canPause }

// FrozenTicks is the burn time banked while paused; 0 while running.
func (f *Furnace) FrozenTicks() int { return f.item.Modifier(EnchantSilkTouch) }

func (f *Furnace) IsPaused() bool { return f.canPause && f.FrozenTicks() > 0 }

func (f *Furnace) CookModifier() int { return f.item.Modifier(EnchantEfficiency) }
func (f *Furnace) BurnModifier() int { return f.item.Modifier(EnchantUnbreaking) }
func (f *Furnace) FortuneLevel() int { return f.item.Modifier(EnchantFortune) }

func (f *Furnace) setFrozenTicks(ticks int) {
	f.item.SetEnchant(EnchantSilkTouch, ticks)
	f.dirty = true
}

// ApplyBurnTimeModifiers first stretches the fuel's burn time by the
// unbreaking level (negated because the shared law shrinks for positive
// values and fuel should last longer), then rescales it by the efficiency
// level so fuel consumption tracks the changed smelt rate.
func (f *Furnace) ApplyBurnTimeModifiers(kind host.FurnaceKind, e *host.BurnEvent) {
	e.BurnTime = ScaledTicks(e.BurnTime, -f.BurnModifier(), 0.2)
	m := f.CookModifier()
	e.BurnTime = ScaledTicks(e.BurnTime, m, cookFraction(kind, m))
}

// CookTimeTotal scales a recipe's base cook ticks by the efficiency level
// for the given furnace sub-type.
func (f *Furnace) CookTimeTotal(kind host.FurnaceKind, base int) int {
	m := f.CookModifier()
	return ScaledTicks(base, m, cookFraction(kind, m))
}

// ShouldPause reports whether the furnace can make no further progress and
// ought to bank its burn time. midSmelt adjusts the slot arithmetic for a
// smelt event still being applied by the engine: one input is about to be
// consumed and one output produced.
func (f *Furnace) ShouldPause(tile host.FurnaceTile, cats *catalogs.Catalogs, midSmelt bool) bool {
	if !f.canPause || f.IsPaused() {
		return false
	}
	return f.stalled(tile, cats, midSmelt)
}

// stalled is the progress check shared by pause and resume: no input, a full
// output, no matching recipe, or a recipe whose result cannot stack onto the
// present output all stop the furnace.
func (f *Furnace) stalled(tile host.FurnaceTile, cats *catalogs.Catalogs, midSmelt bool) bool {
	input := tile.Smelting()
	output := tile.Result()

	if input.Empty() {
		return true
	}
	avail := input.Amount
	if midSmelt {
		avail--
	}
	if avail <= 0 {
		return true
	}
	if !output.Empty() {
		limit := cats.MaxStackSize(output.Material)
		if midSmelt {
			limit--
		}
		if output.Amount >= limit {
			return true
		}
	}
	rec, ok := MatchRecipe(cats.Recipes, tile.Kind(), input)
	if !ok {
		return true
	}
	if !output.Empty() && !ResultTemplate(rec).Similar(output) {
		return true
	}
	return false
}

// Pause banks the current burn time into the freeze marker and stops the
// live timer. A burned-out furnace banks 0, which reads back as not frozen.
func (f *Furnace) Pause(tile host.FurnaceTile) {
	if !f.canPause || f.IsPaused() {
		return
	}
	f.setFrozenTicks(tile.BurnTime())
	tile.SetBurnTime(0)
	tile.Update()
}

// Resume restores banked burn time when the furnace can actually make
// progress again: input present, output not full, and a recipe matching both
// the input and the sub-type of the placed block. Reports whether it ran.
func (f *Furnace) Resume(tile host.FurnaceTile, cats *catalogs.Catalogs) bool {
	if !f.canPause || f.FrozenTicks() <= 0 || tile.BurnTime() > 0 {
		return false
	}
	if f.stalled(tile, cats, false) {
		return false
	}
	tile.SetBurnTime(f.FrozenTicks())
	f.setFrozenTicks(0)
	tile.Update()
	return true
}

// MatchRecipe finds the cooking recipe for an input in a given furnace
// sub-type. Exact data-value matches beat wildcard entries.
func MatchRecipe(rc catalogs.RecipeCatalog, kind host.FurnaceKind, input *host.ItemStack) (catalogs.CookingRecipe, bool) {
	if input.Empty() {
		return catalogs.CookingRecipe{}, false
	}
	want := recipeKind(kind)
	var wild catalogs.CookingRecipe
	haveWild := false
	for _, r := range rc.Cooking {
		if r.Kind != want || host.Material(r.Input) != input.Material {
			continue
		}
		if r.InputData == input.Data {
			return r, true
		}
		if r.InputData == -1 && !haveWild {
			wild, haveWild = r, true
		}
	}
	return wild, haveWild
}

// ResultTemplate is the stack a recipe produces per smelt.
func ResultTemplate(r catalogs.CookingRecipe) *host.ItemStack {
	return &host.ItemStack{Material: host.Material(r.Result), Amount: r.ResultCount}
}

func recipeKind(k host.FurnaceKind) string {
	switch k {
	case host.KindBlastFurnace:
		return catalogs.KindBlasting
	case host.KindSmoker:
		return catalogs.KindSmoking
	default:
		return catalogs.KindSmelting
	}
}
