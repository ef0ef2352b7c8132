package blocks

import (
	"log"
	"math/rand"

	"enchantedblocks.dev/internal/sim/catalogs"
	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/tuning"
)

// FurnaceHooks translates engine events into furnace state transitions.
// Transitions that would race the engine's own post-event processing are
// deferred by one scheduler tick; a scheduler that has shut down drops them,
// and the state is re-derived from storage on next load.
type FurnaceHooks struct {
	mgr     *Manager
	cats    *catalogs.Catalogs
	sched   host.Scheduler
	precise host.PreciseCookTime

	// Rand drives the fortune roll; replaceable in tests.
	Rand func() float64
	Logf func(format string, args ...any)
}

// NewFurnaceHooks wires the hooks. precise may be nil; cook-time updates
// then fall back to writing the tile directly.
func NewFurnaceHooks(mgr *Manager, cats *catalogs.Catalogs, sched host.Scheduler, precise host.PreciseCookTime) *FurnaceHooks {
	return &FurnaceHooks{
		mgr:     mgr,
		cats:    cats,
		sched:   sched,
		precise: precise,
		Rand:    rand.Float64,
		Logf:    log.Printf,
	}
}

func (h *FurnaceHooks) furnaceAt(b host.Block) (*Furnace, host.FurnaceTile, bool) {
	f, ok := h.mgr.GetBlock(b).(*Furnace)
	if !ok {
		return nil, nil, false
	}
	tile, ok := b.Furnace()
	if !ok {
		return nil, nil, false
	}
	return f, tile, true
}

// HandleBurnStart scales the fuel's burn time and, for a frozen furnace,
// resumes from the banked ticks instead of consuming the fuel.
func (h *FurnaceHooks) HandleBurnStart(e *host.BurnEvent) {
	f, tile, ok := h.furnaceAt(e.Block)
	if !ok {
		return
	}
	f.ApplyBurnTimeModifiers(tile.Kind(), e)
	if !f.CanPause() {
		return
	}
	if f.Resume(tile, h.cats) {
		e.Cancelled = true
	}
}

// HandleSmeltComplete rolls fortune bonus output and schedules the
// post-smelt transition: pause when the furnace is about to stall, otherwise
// rescale the next cook cycle. Both wait one tick so the engine's own slot
// updates land first.
func (h *FurnaceHooks) HandleSmeltComplete(e *host.SmeltEvent) {
	f, tile, ok := h.furnaceAt(e.Block)
	if !ok {
		return
	}
	h.applyFortune(f, tile, e)
	if f.ShouldPause(tile, h.cats, true) {
		h.sched.NextTick(func() { f.Pause(tile) })
		return
	}
	if f.CookModifier() != 0 {
		block := e.Block
		h.sched.NextTick(func() { h.updateCookTime(f, block, tile) })
	}
}

// HandleInventoryChange re-evaluates freeze state after any slot mutation:
// a paused furnace tries to resume, a running one checks for a stall.
func (h *FurnaceHooks) HandleInventoryChange(b host.Block) {
	f, tile, ok := h.furnaceAt(b)
	if !ok || !f.CanPause() {
		return
	}
	h.sched.NextTick(func() {
		if f.IsPaused() {
			f.Resume(tile, h.cats)
		} else if f.ShouldPause(tile, h.cats, false) {
			f.Pause(tile)
		}
	})
}

// HandleBlockPlace records the block and lets a replanted frozen furnace try
// to pick up where it left off.
func (h *FurnaceHooks) HandleBlockPlace(b host.Block, item *host.ItemStack) EnchantableBlock {
	eb := h.mgr.CreateBlock(b, item)
	if eb == nil {
		return nil
	}
	if f, ok := eb.(*Furnace); ok && f.IsPaused() {
		if tile, ok := b.Furnace(); ok {
			h.sched.NextTick(func() { f.Resume(tile, h.cats) })
		}
	}
	return eb
}

// HandleBlockBreak banks any live burn time into the item, then removes the
// record and returns the stack to drop.
func (h *FurnaceHooks) HandleBlockBreak(b host.Block) *host.ItemStack {
	if f, ok := h.mgr.GetBlock(b).(*Furnace); ok && f.CanPause() && !f.IsPaused() {
		if tile, ok := b.Furnace(); ok {
			f.Pause(tile)
		}
	}
	return h.mgr.DestroyBlock(b)
}

// HandleChunkLoad defers reconstruction one tick so the engine finishes
// materializing the chunk's tiles first.
func (h *FurnaceHooks) HandleChunkLoad(ck host.ChunkKey) {
	h.sched.NextTick(func() { h.mgr.LoadChunkBlocks(ck) })
}

func (h *FurnaceHooks) HandleChunkUnload(ck host.ChunkKey) {
	h.mgr.UnloadChunkBlocks(ck)
}

func (h *FurnaceHooks) updateCookTime(f *Furnace, b host.Block, tile host.FurnaceTile) {
	rec, ok := MatchRecipe(h.cats.Recipes, tile.Kind(), tile.Smelting())
	if !ok {
		return
	}
	total := f.CookTimeTotal(tile.Kind(), rec.CookTicks)
	if h.precise != nil && h.precise.SetCookTimeTotal(b, total) {
		return
	}
	tile.SetCookTimeTotal(total)
	tile.Update()
}

// applyFortune rolls a bonus drawn from {-1..level} and grows the result
// stack, never past one below its stack limit. With no result in the event
// yet, the recipe table supplies the template; a missing recipe aborts the
// bonus with a log line.
func (h *FurnaceHooks) applyFortune(f *Furnace, tile host.FurnaceTile, e *host.SmeltEvent) {
	level := f.FortuneLevel()
	if level <= 0 || !fortuneApplies(f.Registration().Config(), e.Source) {
		return
	}
	bonus := int(h.Rand()*float64(level+2)) - 1
	if bonus <= 0 {
		return
	}
	result := e.Result
	if result.Empty() {
		rec, ok := MatchRecipe(h.cats.Recipes, tile.Kind(), e.Source)
		if !ok {
			h.Logf("blocks: fortune: no recipe produces a result for %s", e.Source.Material)
			return
		}
		result = ResultTemplate(rec)
	}
	limit := h.cats.MaxStackSize(result.Material) - 1
	amount := result.Amount + bonus
	if amount > limit {
		amount = limit
	}
	if amount <= result.Amount && !e.Result.Empty() {
		return
	}
	result = result.Clone()
	result.Amount = amount
	e.Result = result
}

// fortuneApplies consults the variant's fortune list. An empty list filters
// nothing; otherwise membership is required, or forbidden in blacklist mode.
func fortuneApplies(cfg tuning.BlockTuning, input *host.ItemStack) bool {
	if input.Empty() {
		return false
	}
	if len(cfg.FortuneList) == 0 {
		return true
	}
	listed := false
	for _, m := range cfg.FortuneList {
		if host.Material(m) == input.Material {
			listed = true
			break
		}
	}
	if cfg.FortuneIsBlacklist {
		return !listed
	}
	return listed
}
