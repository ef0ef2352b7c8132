// Package memhost is an in-memory engine host used by tests and the
// standalone server. Worlds, blocks and furnace tiles are plain structs;
// the scheduler queues deferred work until the owner drains it.
package memhost

import (
	"sync"

	"enchantedblocks.dev/internal/sim/host"
)

type Host struct {
	Worlds    map[string]*World
	Scheduler *Scheduler
}

func New() *Host {
	return &Host{
		Worlds:    map[string]*World{},
		Scheduler: &Scheduler{},
	}
}

func (h *Host) AddWorld(name string) *World {
	w := &World{
		name:   name,
		blocks: map[host.Vec3i]*Block{},
		loaded: map[[2]int]bool{},
	}
	h.Worlds[name] = w
	return w
}

// Lookup implements host.WorldLookup.
func (h *Host) Lookup(name string) (host.World, bool) {
	w, ok := h.Worlds[name]
	return w, ok
}

type World struct {
	name   string
	blocks map[host.Vec3i]*Block
	loaded map[[2]int]bool
}

func (w *World) Name() string { return w.name }

func (w *World) BlockAt(p host.Vec3i) host.Block {
	if b, ok := w.blocks[p]; ok {
		return b
	}
	b := &Block{key: host.BlockKey{World: w.name, Pos: p}, material: "AIR"}
	w.blocks[p] = b
	return b
}

// SetBlock places a material and returns the block handle.
func (w *World) SetBlock(p host.Vec3i, m host.Material) *Block {
	b := w.BlockAt(p).(*Block)
	b.SetMaterial(m)
	return b
}

func (w *World) SetChunkLoaded(cx, cz int, loaded bool) {
	if loaded {
		w.loaded[[2]int{cx, cz}] = true
	} else {
		delete(w.loaded, [2]int{cx, cz})
	}
}

func (w *World) ChunkLoaded(cx, cz int) bool { return w.loaded[[2]int{cx, cz}] }

func (w *World) LoadedChunks() []host.ChunkKey {
	out := make([]host.ChunkKey, 0, len(w.loaded))
	for k := range w.loaded {
		out = append(out, host.ChunkKey{World: w.name, CX: k[0], CZ: k[1]})
	}
	return out
}

type Block struct {
	key      host.BlockKey
	material host.Material
	tile     *FurnaceTile
}

func (b *Block) Key() host.BlockKey     { return b.key }
func (b *Block) Material() host.Material { return b.material }

// SetMaterial swaps the material, attaching or dropping the furnace tile as
// the family membership changes.
func (b *Block) SetMaterial(m host.Material) {
	b.material = m
	switch m {
	case "FURNACE":
		b.tile = &FurnaceTile{kind: host.KindFurnace}
	case "BLAST_FURNACE":
		b.tile = &FurnaceTile{kind: host.KindBlastFurnace}
	case "SMOKER":
		b.tile = &FurnaceTile{kind: host.KindSmoker}
	default:
		b.tile = nil
	}
}

func (b *Block) Furnace() (host.FurnaceTile, bool) {
	if b.tile == nil {
		return nil, false
	}
	return b.tile, true
}

// Tile exposes the concrete tile for direct inspection in tests.
func (b *Block) Tile() *FurnaceTile { return b.tile }

type FurnaceTile struct {
	kind          host.FurnaceKind
	burnTime      int
	cookTime      int
	cookTimeTotal int
	smelting      *host.ItemStack
	fuel          *host.ItemStack
	result        *host.ItemStack

	// Updates counts Update calls so tests can assert state pushes.
	Updates int
}

func (t *FurnaceTile) Kind() host.FurnaceKind       { return t.kind }
func (t *FurnaceTile) BurnTime() int                { return t.burnTime }
func (t *FurnaceTile) SetBurnTime(v int)            { t.burnTime = v }
func (t *FurnaceTile) CookTime() int                { return t.cookTime }
func (t *FurnaceTile) SetCookTime(v int)            { t.cookTime = v }
func (t *FurnaceTile) CookTimeTotal() int           { return t.cookTimeTotal }
func (t *FurnaceTile) SetCookTimeTotal(v int)       { t.cookTimeTotal = v }
func (t *FurnaceTile) Smelting() *host.ItemStack    { return t.smelting }
func (t *FurnaceTile) SetSmelting(s *host.ItemStack) { t.smelting = s }
func (t *FurnaceTile) Fuel() *host.ItemStack        { return t.fuel }
func (t *FurnaceTile) SetFuel(s *host.ItemStack)    { t.fuel = s }
func (t *FurnaceTile) Result() *host.ItemStack      { return t.result }
func (t *FurnaceTile) SetResult(s *host.ItemStack)  { t.result = s }
func (t *FurnaceTile) Update()                      { t.Updates++ }

// Precise implements host.PreciseCookTime for in-memory tiles, adjusting the
// total without the Update round trip the coarse path needs.
type Precise struct{}

func (Precise) SetCookTimeTotal(b host.Block, ticks int) bool {
	mb, ok := b.(*Block)
	if !ok || mb.tile == nil {
		return false
	}
	mb.tile.cookTimeTotal = ticks
	return true
}

// Scheduler queues deferred actions. Run drains the queue, including work
// enqueued while draining. After Close, NextTick drops silently. NextTick
// may be called from any goroutine; the queued actions themselves run on
// whichever goroutine calls Run.
type Scheduler struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
}

func (s *Scheduler) NextTick(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, fn)
}

func (s *Scheduler) Run() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		// Actions run outside the lock so they may re-enqueue.
		for _, fn := range batch {
			fn()
		}
	}
}

// Pending reports queued actions not yet run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
