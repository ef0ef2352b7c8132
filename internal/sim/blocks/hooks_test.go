package blocks

import (
	"testing"

	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/host/memhost"
)

func newHooksFixture(t *testing.T) (*managerFixture, *FurnaceHooks) {
	t.Helper()
	fx := newManagerFixture(t)
	h := NewFurnaceHooks(fx.m, testCatalogs(), fx.host.Scheduler, nil)
	h.Logf = func(format string, args ...any) {
		fx.logs = append(fx.logs, format)
	}
	return fx, h
}

func TestHooksBurnStartScalesAndResumes(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, eb := fx.placeFurnace(t, host.Vec3i{X: 1, Y: 64, Z: 1}, map[host.Enchant]int{EnchantSilkTouch: 0, EnchantUnbreaking: 1})
	tile := b.Tile()
	tile.SetSmelting(&host.ItemStack{Material: "IRON_ORE", Amount: 5})

	e := &host.BurnEvent{Block: b, BurnTime: 1600}
	h.HandleBurnStart(e)
	if e.BurnTime != 1920 {
		t.Fatalf("unbreaking 1 on 1600 = %d, want 1920", e.BurnTime)
	}
	if e.Cancelled {
		t.Fatalf("running furnace should consume fuel")
	}

	f := eb.(*Furnace)
	f.setFrozenTicks(55)
	e = &host.BurnEvent{Block: b, BurnTime: 1600}
	h.HandleBurnStart(e)
	if !e.Cancelled {
		t.Fatalf("frozen furnace should resume instead of burning fuel")
	}
	if tile.BurnTime() != 55 || f.FrozenTicks() != 0 {
		t.Fatalf("after resume: burn=%d frozen=%d", tile.BurnTime(), f.FrozenTicks())
	}
}

func TestHooksSmeltCompleteDefersPause(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, eb := fx.placeFurnace(t, host.Vec3i{X: 2, Y: 64, Z: 2}, map[host.Enchant]int{EnchantSilkTouch: 0})
	tile := b.Tile()
	tile.SetBurnTime(90)
	source := &host.ItemStack{Material: "IRON_ORE", Amount: 1}
	tile.SetSmelting(source)

	h.HandleSmeltComplete(&host.SmeltEvent{Block: b, Source: source})

	f := eb.(*Furnace)
	if f.IsPaused() {
		t.Fatalf("pause must wait for the engine to apply the smelt")
	}
	fx.host.Scheduler.Run()
	if !f.IsPaused() || f.FrozenTicks() != 90 {
		t.Fatalf("deferred pause: paused=%v frozen=%d", f.IsPaused(), f.FrozenTicks())
	}
	if tile.BurnTime() != 0 {
		t.Fatalf("paused furnace keeps live burn time %d", tile.BurnTime())
	}
}

func TestHooksSmeltCompleteRescalesCookTime(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, _ := fx.placeFurnace(t, host.Vec3i{X: 3, Y: 64, Z: 3}, map[host.Enchant]int{EnchantEfficiency: 4})
	tile := b.Tile()
	tile.SetBurnTime(500)
	source := &host.ItemStack{Material: "IRON_ORE", Amount: 8}
	tile.SetSmelting(source)

	h.HandleSmeltComplete(&host.SmeltEvent{Block: b, Source: source})
	fx.host.Scheduler.Run()

	if tile.CookTimeTotal() != 66 {
		t.Fatalf("cook time total = %d, want 66", tile.CookTimeTotal())
	}
	if tile.Updates == 0 {
		t.Fatalf("coarse path should push the tile state")
	}
}

func TestHooksSmeltCompletePrefersPreciseCapability(t *testing.T) {
	fx, h := newHooksFixture(t)
	h.precise = memhost.Precise{}
	b, _ := fx.placeFurnace(t, host.Vec3i{X: 9, Y: 64, Z: 3}, map[host.Enchant]int{EnchantEfficiency: 4})
	tile := b.Tile()
	tile.SetBurnTime(500)
	source := &host.ItemStack{Material: "IRON_ORE", Amount: 8}
	tile.SetSmelting(source)

	h.HandleSmeltComplete(&host.SmeltEvent{Block: b, Source: source})
	fx.host.Scheduler.Run()

	if tile.CookTimeTotal() != 66 {
		t.Fatalf("cook time total = %d, want 66", tile.CookTimeTotal())
	}
	if tile.Updates != 0 {
		t.Fatalf("precise path must not push tile state, saw %d updates", tile.Updates)
	}
}

func TestHooksInventoryChangeResumes(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, eb := fx.placeFurnace(t, host.Vec3i{X: 4, Y: 64, Z: 4}, map[host.Enchant]int{EnchantSilkTouch: 0})
	tile := b.Tile()
	tile.SetBurnTime(140)
	f := eb.(*Furnace)

	// Input runs out: the change handler pauses.
	h.HandleInventoryChange(b)
	fx.host.Scheduler.Run()
	if !f.IsPaused() || f.FrozenTicks() != 140 {
		t.Fatalf("stall should pause with 140 banked, got %d", f.FrozenTicks())
	}

	// Refill: the change handler resumes.
	tile.SetSmelting(&host.ItemStack{Material: "IRON_ORE", Amount: 3})
	h.HandleInventoryChange(b)
	fx.host.Scheduler.Run()
	if f.IsPaused() || tile.BurnTime() != 140 {
		t.Fatalf("refill should resume: paused=%v burn=%d", f.IsPaused(), tile.BurnTime())
	}
}

func TestHooksBreakAndReplantRoundTrip(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, _ := fx.placeFurnace(t, host.Vec3i{X: 5, Y: 64, Z: 5}, map[host.Enchant]int{EnchantSilkTouch: 0})
	tile := b.Tile()
	tile.SetBurnTime(212)

	item := h.HandleBlockBreak(b)
	if item.Empty() {
		t.Fatalf("break should drop the furnace item")
	}
	if got := item.EnchantLevel(EnchantSilkTouch); got != 212 {
		t.Fatalf("dropped item banks %d ticks, want 212", got)
	}

	// Replant somewhere else, with smeltable input waiting.
	b2 := fx.w.SetBlock(host.Vec3i{X: 20, Y: 64, Z: 20}, "FURNACE")
	tile2 := b2.Tile()
	tile2.SetSmelting(&host.ItemStack{Material: "IRON_ORE", Amount: 4})

	eb := h.HandleBlockPlace(b2, item)
	if eb == nil {
		t.Fatalf("replant should create")
	}
	fx.host.Scheduler.Run()
	f := eb.(*Furnace)
	if tile2.BurnTime() != 212 || f.FrozenTicks() != 0 {
		t.Fatalf("replant resume: burn=%d frozen=%d", tile2.BurnTime(), f.FrozenTicks())
	}
}

func TestHooksFortune(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, _ := fx.placeFurnace(t, host.Vec3i{X: 6, Y: 64, Z: 6}, map[host.Enchant]int{EnchantFortune: 3})
	tile := b.Tile()
	source := &host.ItemStack{Material: "IRON_ORE", Amount: 10}
	tile.SetSmelting(source)

	// Rand 0.99 with level 3 draws floor(0.99*5)-1 = 3 bonus.
	h.Rand = func() float64 { return 0.99 }
	e := &host.SmeltEvent{Block: b, Source: source, Result: &host.ItemStack{Material: "IRON_INGOT", Amount: 2}}
	h.HandleSmeltComplete(e)
	if e.Result.Amount != 5 {
		t.Fatalf("bonus 3 on 2 = %d, want 5", e.Result.Amount)
	}

	// Rand 0 draws -1: no change.
	h.Rand = func() float64 { return 0 }
	e = &host.SmeltEvent{Block: b, Source: source, Result: &host.ItemStack{Material: "IRON_INGOT", Amount: 2}}
	h.HandleSmeltComplete(e)
	if e.Result.Amount != 2 {
		t.Fatalf("bonus -1 should change nothing, got %d", e.Result.Amount)
	}

	// Clamped to one below the stack limit.
	h.Rand = func() float64 { return 0.99 }
	e = &host.SmeltEvent{Block: b, Source: source, Result: &host.ItemStack{Material: "IRON_INGOT", Amount: 62}}
	h.HandleSmeltComplete(e)
	if e.Result.Amount != 63 {
		t.Fatalf("clamp to 63, got %d", e.Result.Amount)
	}

	// No result yet: the recipe table supplies the template.
	e = &host.SmeltEvent{Block: b, Source: source}
	h.HandleSmeltComplete(e)
	if e.Result.Empty() || e.Result.Material != "IRON_INGOT" || e.Result.Amount != 4 {
		t.Fatalf("template result %+v", e.Result)
	}

	// Unsmeltable source: logged, no result invented.
	pearls := &host.ItemStack{Material: "ENDER_PEARL", Amount: 1}
	tile.SetSmelting(pearls)
	before := len(fx.logs)
	e = &host.SmeltEvent{Block: b, Source: pearls}
	h.HandleSmeltComplete(e)
	if !e.Result.Empty() {
		t.Fatalf("no recipe should mean no bonus, got %+v", e.Result)
	}
	if len(fx.logs) == before {
		t.Fatalf("missing recipe should log")
	}
}

func TestHooksSchedulerShutdownDropsWork(t *testing.T) {
	fx, h := newHooksFixture(t)
	b, eb := fx.placeFurnace(t, host.Vec3i{X: 7, Y: 64, Z: 7}, map[host.Enchant]int{EnchantSilkTouch: 0})
	tile := b.Tile()
	tile.SetBurnTime(60)

	fx.host.Scheduler.Close()
	h.HandleInventoryChange(b)
	fx.host.Scheduler.Run()

	f := eb.(*Furnace)
	if f.IsPaused() {
		t.Fatalf("closed scheduler must drop the deferred pause")
	}
}
