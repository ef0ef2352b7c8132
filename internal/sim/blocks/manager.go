package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strconv"
	"strings"
	"time"

	"enchantedblocks.dev/internal/persistence/regionstore"
	"enchantedblocks.dev/internal/sim/cache"
	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/tuning"
)

// Recorder observes lifecycle transitions for offline inspection. All
// methods are called on the engine tick goroutine and must not block.
type Recorder interface {
	BlockEvent(event string, key host.BlockKey, variant string)
	RegionFlush(region regionstore.Region)
}

// ManagerConfig wires a Manager. Registry, Tuning, Worlds and StorageRoot
// are required; the rest defaults.
type ManagerConfig struct {
	StorageRoot string
	Registry    *Registry
	Tuning      func() *tuning.Tuning
	Worlds      host.WorldLookup

	Now      func() time.Time
	Logf     func(format string, args ...any)
	Recorder Recorder
}

// Manager moves enchantable blocks through their lifecycle. Per coordinate
// the states are: absent, loaded (in the block cache, backed by a live world
// block), persisted-only (chunk unloaded, record on disk), and absent again
// once destroyed.
//
// Two caches back it: regions holds open storage documents and blocks holds
// live block instances. A region stays cached while any of its blocks is
// loaded; pushing a region past its retention flushes it if dirty.
type Manager struct {
	registry    *Registry
	worlds      host.WorldLookup
	storageRoot string
	now         func() time.Time
	logf        func(string, ...any)
	rec         Recorder

	regions *cache.Cache[regionstore.Region, *RegionStorageData]
	blocks  *cache.Cache[host.BlockKey, EnchantableBlock]
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	m := &Manager{
		registry:    cfg.Registry,
		worlds:      cfg.Worlds,
		storageRoot: cfg.StorageRoot,
		now:         cfg.Now,
		logf:        cfg.Logf,
		rec:         cfg.Recorder,
	}
	t := cfg.Tuning()
	m.regions = cache.New(cache.Config[regionstore.Region, *RegionStorageData]{
		Now:           cfg.Now,
		Retention:     t.CacheRetention(),
		LazyFrequency: t.CacheLazyCheck(),
		Load:          m.loadRegion,
		InUse:         m.regionInUse,
		PostRemoval:   m.flushRegion,
	})
	m.blocks = cache.New(cache.Config[host.BlockKey, EnchantableBlock]{
		Now:           cfg.Now,
		Retention:     t.CacheRetention(),
		LazyFrequency: t.CacheLazyCheck(),
		InUse:         m.blockInUse,
		PostRemoval:   m.persistBlock,
	})
	return m
}

func (m *Manager) Registry() *Registry { return m.registry }

// CreateBlock records a freshly placed block. It declines silently when the
// item carries no enchantments, no registration claims the material, or the
// variant is disabled for the block's world.
func (m *Manager) CreateBlock(b host.Block, item *host.ItemStack) EnchantableBlock {
	key := b.Key()
	reg, ok := m.registry.Get(b.Material())
	if !ok || !reg.Config().EnabledIn(key.World) {
		return nil
	}
	eb := m.newBlock(key, b.Material(), item)
	if eb == nil {
		return nil
	}
	eb.SetDirty(true)
	m.blocks.Put(key, eb)
	m.record("create", key, eb.Registration().Name)
	return eb
}

// GetBlock is a pure lookup. A block whose variant has since been disabled
// for its world reads as absent without being removed.
func (m *Manager) GetBlock(b host.Block) EnchantableBlock {
	eb, ok := m.blocks.GetIfPresent(b.Key())
	if !ok || eb == nil {
		return nil
	}
	if !eb.Registration().Config().EnabledIn(b.Key().World) {
		return nil
	}
	return eb
}

// DestroyBlock removes a block's record and returns the item to drop. An
// unreachable region document yields nothing; a structurally invalid record
// falls back to the in-memory item when one is loaded.
func (m *Manager) DestroyBlock(b host.Block) *host.ItemStack {
	key := b.Key()
	data, ok := m.regions.Get(regionOf(key))
	if !ok || data == nil {
		m.logf("blocks: destroy %v %s: region storage unavailable", key.World, key.Pos)
		return nil
	}
	ckey := chunkSectionKey(host.ChunkOf(key))
	bkey := blockSectionKey(key.Pos)

	eb, loaded := m.blocks.GetIfPresent(key)
	m.blocks.Invalidate(key)

	rec, err := data.storage.Record(ckey, bkey)
	if err != nil {
		// The whole chunk section is unreadable. Leave it for chunk load to
		// report; salvage the in-memory item if we have one.
		m.logf("blocks: destroy %v %s: %v", key.World, key.Pos, err)
		if loaded && eb != nil {
			m.record("destroy", key, eb.Registration().Name)
			return dropStack(eb.Item())
		}
		return nil
	}
	if rec == nil && (!loaded || eb == nil) {
		return nil
	}

	var stored *host.ItemStack
	if rec != nil {
		_, stored, err = decodeRecord(rec)
		data.storage.DeleteRecord(ckey, bkey)
		if err != nil {
			m.logf("blocks: destroy %v %s: invalid save: %v", key.World, key.Pos, err)
			stored = nil
			if !loaded || eb == nil {
				return nil
			}
		}
	}

	item := stored
	variant := ""
	if loaded && eb != nil {
		item = eb.Item()
		variant = eb.Registration().Name
	}
	if item.Empty() {
		return nil
	}
	m.record("destroy", key, variant)
	return dropStack(item)
}

// LoadChunkBlocks reconstructs every persisted block under a chunk into the
// block cache. Records that cannot be decoded, located, or matched against
// the live world block are logged and dropped from storage.
func (m *Manager) LoadChunkBlocks(ck host.ChunkKey) {
	data, ok := m.regions.GetIfPresent(regionstore.FromChunk(ck.World, ck.CX, ck.CZ))
	if !ok || data == nil {
		return
	}
	ckey := chunkSectionKey(ck)
	sec, err := data.storage.Chunk(ckey)
	if err != nil {
		m.logf("blocks: load %s chunk %s: invalid section: %v", ck.World, ckey, err)
		data.storage.DeleteChunk(ckey)
		return
	}
	if len(sec) == 0 {
		return
	}
	w, haveWorld := m.worlds(ck.World)

	bkeys := make([]string, 0, len(sec))
	for bkey := range sec {
		bkeys = append(bkeys, bkey)
	}
	for _, bkey := range bkeys {
		pos, ok := parseBlockKey(bkey)
		if !ok {
			m.logf("blocks: load %s chunk %s: unparseable coordinates %q", ck.World, ckey, bkey)
			data.storage.DeleteRecord(ckey, bkey)
			continue
		}
		key := host.BlockKey{World: ck.World, Pos: pos}
		if m.blocks.ContainsKey(key) {
			continue
		}
		typ, item, err := decodeRecord(sec[bkey])
		if err != nil {
			m.logf("blocks: load %s chunk %s: invalid save at %q: %v", ck.World, ckey, bkey, err)
			data.storage.DeleteRecord(ckey, bkey)
			continue
		}
		if !haveWorld {
			continue
		}
		b := w.BlockAt(pos)
		eb := m.newBlock(key, b.Material(), item)
		if eb == nil {
			m.logf("blocks: load %s chunk %s: block at %q no longer supported, dropping save", ck.World, ckey, bkey)
			data.storage.DeleteRecord(ckey, bkey)
			continue
		}
		if got := eb.Registration().Name; got != typ {
			m.logf("blocks: load %s chunk %s: save at %q is a %s, block is a %s, dropping save", ck.World, ckey, bkey, typ, got)
			data.storage.DeleteRecord(ckey, bkey)
			continue
		}
		m.blocks.Put(key, eb)
		m.record("load", key, eb.Registration().Name)
	}
}

// UnloadChunkBlocks drops a chunk's blocks from memory, leaving their
// persisted records in place. If any block was dirty, the owning region is
// flushed to disk first.
func (m *Manager) UnloadChunkBlocks(ck host.ChunkKey) {
	var keys []host.BlockKey
	m.blocks.Each(func(key host.BlockKey, _ EnchantableBlock) {
		if host.ChunkOf(key) == ck {
			keys = append(keys, key)
		}
	})
	if len(keys) == 0 {
		return
	}

	var data *RegionStorageData
	anyDirty := false
	for _, key := range keys {
		eb, ok := m.blocks.GetIfPresent(key)
		m.blocks.Invalidate(key)
		if !ok || eb == nil {
			continue
		}
		m.record("unload", key, eb.Registration().Name)
		if !eb.Dirty() {
			continue
		}
		if data == nil {
			d, ok := m.regions.Get(regionstore.FromChunk(ck.World, ck.CX, ck.CZ))
			if !ok || d == nil {
				m.logf("blocks: unload %s chunk %d_%d: region storage unavailable", ck.World, ck.CX, ck.CZ)
				continue
			}
			data = d
		}
		data.writeBlock(eb)
		anyDirty = true
	}
	if anyDirty {
		if err := data.Save(); err != nil {
			m.logf("blocks: unload %s chunk %d_%d: %v", ck.World, ck.CX, ck.CZ, err)
		}
	}
}

// ExpireCache pushes every cached region through the in-use check, flushing
// dirty ones. Regions with loaded blocks survive but still hit disk; the
// rest are evicted. Used at shutdown.
func (m *Manager) ExpireCache() {
	m.regions.ExpireAll()
}

// LoadedBlocks counts block instances currently in memory.
func (m *Manager) LoadedBlocks() int {
	n := 0
	m.blocks.Each(func(host.BlockKey, EnchantableBlock) { n++ })
	return n
}

// LoadedRegions counts region documents currently in memory.
func (m *Manager) LoadedRegions() int {
	n := 0
	m.regions.Each(func(regionstore.Region, *RegionStorageData) { n++ })
	return n
}

func (m *Manager) newBlock(key host.BlockKey, mat host.Material, item *host.ItemStack) EnchantableBlock {
	if item.Empty() || !item.Enchanted() {
		return nil
	}
	reg, ok := m.registry.Get(mat)
	if !ok {
		return nil
	}
	stack := item.Clone()
	stack.Amount = 1
	return reg.New(reg, key, stack)
}

func (m *Manager) loadRegion(r regionstore.Region, create bool) (*RegionStorageData, bool) {
	s, err := regionstore.Open(m.storageRoot, r, create)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logf("blocks: open region %s: %v", r, err)
		}
		return nil, false
	}
	return &RegionStorageData{m: m, storage: s}, true
}

// regionInUse keeps a region alive while any of its blocks is loaded. A
// vetoed region that is dirty gets flushed so shutdown's forced expiry never
// leaves loaded-block state only in memory.
func (m *Manager) regionInUse(r regionstore.Region, data *RegionStorageData) bool {
	inUse := false
	m.blocks.Each(func(key host.BlockKey, _ EnchantableBlock) {
		if regionOf(key) == r {
			inUse = true
		}
	})
	if !inUse {
		return false
	}
	if data.Dirty() {
		if err := data.Save(); err != nil {
			m.logf("blocks: flush region %s: %v", r, err)
		}
	}
	return true
}

func (m *Manager) flushRegion(r regionstore.Region, data *RegionStorageData) {
	if data == nil {
		return
	}
	if err := data.Save(); err != nil {
		m.logf("blocks: flush region %s: %v", r, err)
		return
	}
	if m.rec != nil {
		m.rec.RegionFlush(r)
	}
}

// persistBlock handles a block evicted without an unload event, e.g. when
// its chunk quietly went away. Dirty state is written through immediately.
func (m *Manager) persistBlock(key host.BlockKey, eb EnchantableBlock) {
	if eb == nil || !eb.Dirty() {
		return
	}
	data, ok := m.regions.Get(regionOf(key))
	if !ok || data == nil {
		m.logf("blocks: persist %v %s: region storage unavailable", key.World, key.Pos)
		return
	}
	data.writeBlock(eb)
	if err := data.Save(); err != nil {
		m.logf("blocks: persist %v %s: %v", key.World, key.Pos, err)
	}
}

func (m *Manager) blockInUse(key host.BlockKey, _ EnchantableBlock) bool {
	w, ok := m.worlds(key.World)
	if !ok {
		return false
	}
	ck := host.ChunkOf(key)
	return w.ChunkLoaded(ck.CX, ck.CZ)
}

func (m *Manager) record(event string, key host.BlockKey, variant string) {
	if m.rec != nil {
		m.rec.BlockEvent(event, key, variant)
	}
}

// RegionStorageData pairs an open region document with a dirty bit
// aggregated from the document itself and all loaded blocks in the region.
// The aggregate is memoized briefly since hooks may probe it every tick.
type RegionStorageData struct {
	m       *Manager
	storage *regionstore.Storage

	dirtyChecked time.Time
	dirtyCached  bool
}

const dirtyMemo = 100 * time.Millisecond

func (d *RegionStorageData) Storage() *regionstore.Storage { return d.storage }

func (d *RegionStorageData) Dirty() bool {
	now := d.m.now()
	if !d.dirtyChecked.IsZero() && now.Sub(d.dirtyChecked) < dirtyMemo {
		return d.dirtyCached
	}
	d.dirtyChecked = now
	d.dirtyCached = d.storage.Dirty() || d.anyBlockDirty()
	return d.dirtyCached
}

func (d *RegionStorageData) anyBlockDirty() bool {
	r := d.storage.Region()
	dirty := false
	d.m.blocks.Each(func(key host.BlockKey, eb EnchantableBlock) {
		if eb != nil && eb.Dirty() && regionOf(key) == r {
			dirty = true
		}
	})
	return dirty
}

// Save banks every dirty loaded block into the document, then writes it out.
func (d *RegionStorageData) Save() error {
	r := d.storage.Region()
	d.m.blocks.Each(func(key host.BlockKey, eb EnchantableBlock) {
		if eb != nil && eb.Dirty() && regionOf(key) == r {
			d.writeBlock(eb)
		}
	})
	if err := d.storage.Save(); err != nil {
		return err
	}
	d.dirtyChecked = time.Time{}
	return nil
}

func (d *RegionStorageData) writeBlock(eb EnchantableBlock) {
	rec, err := encodeRecord(eb)
	if err != nil {
		d.m.logf("blocks: encode %v %s: %v", eb.Key().World, eb.Key().Pos, err)
		return
	}
	d.storage.SetRecord(chunkSectionKey(host.ChunkOf(eb.Key())), blockSectionKey(eb.Key().Pos), rec)
	eb.SetDirty(false)
}

// blockRecord is the persisted per-block document: the variant name plus the
// CBOR item stack (base64 inside the JSON).
type blockRecord struct {
	Type string `json:"type"`
	Item []byte `json:"item"`
}

func encodeRecord(eb EnchantableBlock) (json.RawMessage, error) {
	raw, err := regionstore.EncodeItem(eb.Item())
	if err != nil {
		return nil, err
	}
	return json.Marshal(blockRecord{Type: eb.Registration().Name, Item: raw})
}

func decodeRecord(raw json.RawMessage) (string, *host.ItemStack, error) {
	var r blockRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", nil, err
	}
	item, err := regionstore.DecodeItem(r.Item)
	if err != nil {
		return "", nil, err
	}
	if item.Empty() {
		return "", nil, fmt.Errorf("empty item stack")
	}
	return r.Type, item, nil
}

func regionOf(key host.BlockKey) regionstore.Region {
	ck := host.ChunkOf(key)
	return regionstore.FromChunk(key.World, ck.CX, ck.CZ)
}

func chunkSectionKey(ck host.ChunkKey) string {
	return strconv.Itoa(ck.CX) + "_" + strconv.Itoa(ck.CZ)
}

func blockSectionKey(p host.Vec3i) string {
	return fmt.Sprintf("%d_%d_%d", p.X, p.Y, p.Z)
}

func parseBlockKey(s string) (host.Vec3i, bool) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return host.Vec3i{}, false
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return host.Vec3i{}, false
		}
		out[i] = n
	}
	return host.Vec3i{X: out[0], Y: out[1], Z: out[2]}, true
}

func dropStack(s *host.ItemStack) *host.ItemStack {
	out := s.Clone()
	out.Amount = 1
	return out
}
