package blocks

import (
	"testing"

	"enchantedblocks.dev/internal/sim/catalogs"
	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/host/memhost"
)

func testCatalogs() *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Materials: catalogs.MaterialCatalog{Defs: map[host.Material]catalogs.MaterialDef{
			"FURNACE":     {ID: "FURNACE", MaxStack: 64, Block: true},
			"IRON_ORE":    {ID: "IRON_ORE", MaxStack: 64, Block: true},
			"IRON_INGOT":  {ID: "IRON_INGOT", MaxStack: 64},
			"ENDER_PEARL": {ID: "ENDER_PEARL", MaxStack: 16},
			"OAK_LOG":     {ID: "OAK_LOG", MaxStack: 64, Block: true},
			"CHARCOAL":    {ID: "CHARCOAL", MaxStack: 64},
		}},
		Recipes: catalogs.RecipeCatalog{Cooking: []catalogs.CookingRecipe{
			{ID: "smelt_iron", Kind: catalogs.KindSmelting, Input: "IRON_ORE", InputData: -1, Result: "IRON_INGOT", ResultCount: 1, CookTicks: 200},
			{ID: "blast_iron", Kind: catalogs.KindBlasting, Input: "IRON_ORE", InputData: -1, Result: "IRON_INGOT", ResultCount: 1, CookTicks: 100},
			{ID: "char_log", Kind: catalogs.KindSmelting, Input: "OAK_LOG", InputData: -1, Result: "CHARCOAL", ResultCount: 1, CookTicks: 200},
			{ID: "char_stripped", Kind: catalogs.KindSmelting, Input: "OAK_LOG", InputData: 2, Result: "CHARCOAL", ResultCount: 2, CookTicks: 150},
		}},
	}
}

func furnaceItem(enchants map[host.Enchant]int) *host.ItemStack {
	return &host.ItemStack{Material: "FURNACE", Amount: 1, Enchants: enchants}
}

func newTestFurnace(t *testing.T, enchants map[host.Enchant]int) *Furnace {
	t.Helper()
	reg := FurnaceRegistration()
	key := host.BlockKey{World: "world", Pos: host.Vec3i{X: 8, Y: 64, Z: 8}}
	eb := NewFurnace(reg, key, furnaceItem(enchants))
	f, ok := eb.(*Furnace)
	if !ok {
		t.Fatalf("factory returned %T", eb)
	}
	return f
}

func readyTile(kind host.FurnaceKind) *memhost.FurnaceTile {
	w := memhost.New().AddWorld("world")
	var mat host.Material
	switch kind {
	case host.KindBlastFurnace:
		mat = "BLAST_FURNACE"
	case host.KindSmoker:
		mat = "SMOKER"
	default:
		mat = "FURNACE"
	}
	b := w.SetBlock(host.Vec3i{X: 8, Y: 64, Z: 8}, mat)
	tile := b.Tile()
	tile.SetSmelting(&host.ItemStack{Material: "IRON_ORE", Amount: 10})
	return tile
}

func TestNewFurnaceCanPause(t *testing.T) {
	if f := newTestFurnace(t, map[host.Enchant]int{EnchantEfficiency: 3}); f.CanPause() {
		t.Fatalf("no silk touch, should not pause")
	}
	f := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 0})
	if !f.CanPause() || f.IsPaused() {
		t.Fatalf("silk touch 0: canPause=%v paused=%v", f.CanPause(), f.IsPaused())
	}
}

func TestNewFurnaceLegacyMarker(t *testing.T) {
	f := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 1})
	if got := f.Item().EnchantLevel(EnchantSilkTouch); got != 0 {
		t.Fatalf("legacy level 1 should coerce to 0, got %d", got)
	}
	if !f.Dirty() {
		t.Fatalf("coercion must mark dirty")
	}
	// Level 2 and up is banked burn time, not a legacy marker.
	f = newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 40})
	if f.FrozenTicks() != 40 || !f.IsPaused() {
		t.Fatalf("frozen=%d paused=%v", f.FrozenTicks(), f.IsPaused())
	}
}

func TestFurnacePauseResumeRoundTrip(t *testing.T) {
	cats := testCatalogs()
	f := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 0})
	tile := readyTile(host.KindFurnace)
	tile.SetBurnTime(123)

	f.Pause(tile)
	if f.FrozenTicks() != 123 || tile.BurnTime() != 0 {
		t.Fatalf("after pause: frozen=%d burn=%d", f.FrozenTicks(), tile.BurnTime())
	}
	if !f.IsPaused() || !f.Dirty() {
		t.Fatalf("pause must freeze and dirty")
	}

	if !f.Resume(tile, cats) {
		t.Fatalf("resume should succeed with input and recipe present")
	}
	if tile.BurnTime() != 123 {
		t.Fatalf("resume restored %d ticks, want 123", tile.BurnTime())
	}
	if f.FrozenTicks() != 0 || f.IsPaused() {
		t.Fatalf("after resume: frozen=%d paused=%v", f.FrozenTicks(), f.IsPaused())
	}
}

func TestFurnacePauseBurnedOutDoesNotFreeze(t *testing.T) {
	f := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 0})
	tile := readyTile(host.KindFurnace)

	f.Pause(tile)
	if f.IsPaused() {
		t.Fatalf("banking zero burn time must not freeze")
	}
}

func TestFurnaceResumeRefusals(t *testing.T) {
	cats := testCatalogs()

	f := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 50})
	tile := readyTile(host.KindFurnace)
	tile.SetSmelting(nil)
	if f.Resume(tile, cats) {
		t.Fatalf("resume without input should refuse")
	}

	// Nothing smelts ender pearls.
	f = newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 50})
	tile = readyTile(host.KindFurnace)
	tile.SetSmelting(&host.ItemStack{Material: "ENDER_PEARL", Amount: 1})
	if f.Resume(tile, cats) {
		t.Fatalf("resume without matching recipe should refuse")
	}

	// Live burn time means there is nothing to resume into.
	f = newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 50})
	tile = readyTile(host.KindFurnace)
	tile.SetBurnTime(10)
	if f.Resume(tile, cats) {
		t.Fatalf("resume with live burn time should refuse")
	}
}

func TestFurnaceShouldPause(t *testing.T) {
	cats := testCatalogs()
	f := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 0})

	tile := readyTile(host.KindFurnace)
	if f.ShouldPause(tile, cats, false) {
		t.Fatalf("input and recipe present, should not pause")
	}

	tile.SetSmelting(nil)
	if !f.ShouldPause(tile, cats, false) {
		t.Fatalf("empty input should pause")
	}

	// Last input consumed by the in-flight smelt.
	tile = readyTile(host.KindFurnace)
	tile.SetSmelting(&host.ItemStack{Material: "IRON_ORE", Amount: 1})
	if f.ShouldPause(tile, cats, false) {
		t.Fatalf("one input, no event in flight, should keep going")
	}
	if !f.ShouldPause(tile, cats, true) {
		t.Fatalf("one input mid-smelt should pause")
	}

	// Output at the cap.
	tile = readyTile(host.KindFurnace)
	tile.SetResult(&host.ItemStack{Material: "IRON_INGOT", Amount: 64})
	if !f.ShouldPause(tile, cats, false) {
		t.Fatalf("full output should pause")
	}
	tile.SetResult(&host.ItemStack{Material: "IRON_INGOT", Amount: 63})
	if f.ShouldPause(tile, cats, false) {
		t.Fatalf("one slot left, should keep going")
	}
	if !f.ShouldPause(tile, cats, true) {
		t.Fatalf("one slot left mid-smelt should pause")
	}

	// Recipe result does not stack with what is in the output slot.
	tile = readyTile(host.KindFurnace)
	tile.SetResult(&host.ItemStack{Material: "CHARCOAL", Amount: 1})
	if !f.ShouldPause(tile, cats, false) {
		t.Fatalf("dissimilar output should pause")
	}

	// Without the freeze enchantment nothing ever pauses.
	plain := newTestFurnace(t, map[host.Enchant]int{EnchantEfficiency: 1})
	tile = readyTile(host.KindFurnace)
	tile.SetSmelting(nil)
	if plain.ShouldPause(tile, cats, false) {
		t.Fatalf("freeze-incapable furnace must never pause")
	}
}

func TestFurnaceBurnTimeModifiers(t *testing.T) {
	f := newTestFurnace(t, map[host.Enchant]int{EnchantUnbreaking: 2})
	e := &host.BurnEvent{BurnTime: 1600}
	f.ApplyBurnTimeModifiers(host.KindFurnace, e)
	if e.BurnTime != 2240 {
		t.Fatalf("unbreaking 2 on 1600 = %d, want 2240", e.BurnTime)
	}

	// Unbreaking widens first, then efficiency narrows to match the faster
	// smelt rate: 1600*1.2 = 1920, 1920/(1+2*0.5) = 960.
	f = newTestFurnace(t, map[host.Enchant]int{EnchantUnbreaking: 1, EnchantEfficiency: 2})
	e = &host.BurnEvent{BurnTime: 1600}
	f.ApplyBurnTimeModifiers(host.KindFurnace, e)
	if e.BurnTime != 960 {
		t.Fatalf("unbreaking 1 + efficiency 2 on 1600 = %d, want 960", e.BurnTime)
	}

	// Fast sub-types double the efficiency step: 1600/(1+4*1.0) = 320.
	f = newTestFurnace(t, map[host.Enchant]int{EnchantEfficiency: 4})
	e = &host.BurnEvent{BurnTime: 1600}
	f.ApplyBurnTimeModifiers(host.KindBlastFurnace, e)
	if e.BurnTime != 320 {
		t.Fatalf("blast furnace efficiency 4 on 1600 = %d, want 320", e.BurnTime)
	}

	f = newTestFurnace(t, nil)
	e = &host.BurnEvent{BurnTime: 1600}
	f.ApplyBurnTimeModifiers(host.KindFurnace, e)
	if e.BurnTime != 1600 {
		t.Fatalf("no enchants should leave burn time alone, got %d", e.BurnTime)
	}
}

func TestFurnaceCookTimeTotal(t *testing.T) {
	f := newTestFurnace(t, map[host.Enchant]int{EnchantEfficiency: 4})
	if got := f.CookTimeTotal(host.KindFurnace, 200); got != 66 {
		t.Fatalf("furnace efficiency 4: %d, want 66", got)
	}
	if got := f.CookTimeTotal(host.KindSmoker, 200); got != 40 {
		t.Fatalf("smoker efficiency 4: %d, want 40", got)
	}
	plain := newTestFurnace(t, map[host.Enchant]int{EnchantSilkTouch: 0})
	if got := plain.CookTimeTotal(host.KindSmoker, 200); got != 200 {
		t.Fatalf("no efficiency: %d, want 200", got)
	}
}

func TestMatchRecipePrefersExactData(t *testing.T) {
	cats := testCatalogs()

	rec, ok := MatchRecipe(cats.Recipes, host.KindFurnace, &host.ItemStack{Material: "OAK_LOG", Amount: 1, Data: 2})
	if !ok || rec.ID != "char_stripped" {
		t.Fatalf("exact data match: %v %v", rec.ID, ok)
	}
	rec, ok = MatchRecipe(cats.Recipes, host.KindFurnace, &host.ItemStack{Material: "OAK_LOG", Amount: 1, Data: 7})
	if !ok || rec.ID != "char_log" {
		t.Fatalf("wildcard fallback: %v %v", rec.ID, ok)
	}
	if _, ok := MatchRecipe(cats.Recipes, host.KindSmoker, &host.ItemStack{Material: "IRON_ORE", Amount: 1}); ok {
		t.Fatalf("smoker must not match smelting recipes")
	}
}
