package host

// FurnaceKind distinguishes the furnace block family. Smokers and blast
// furnaces cook at double speed by nature.
type FurnaceKind int

const (
	KindFurnace FurnaceKind = iota
	KindBlastFurnace
	KindSmoker
)

func (k FurnaceKind) Fast() bool { return k != KindFurnace }

func (k FurnaceKind) String() string {
	switch k {
	case KindBlastFurnace:
		return "BLAST_FURNACE"
	case KindSmoker:
		return "SMOKER"
	default:
		return "FURNACE"
	}
}

// Block is a live block position in a loaded world.
type Block interface {
	Key() BlockKey
	Material() Material
	SetMaterial(Material)
	// Furnace returns the furnace tile view when the block is currently a
	// furnace-family block with a live tile entity.
	Furnace() (FurnaceTile, bool)
}

// FurnaceTile is the mutable state of a placed furnace: timers plus the three
// inventory slots. Update pushes pending tile state to clients.
type FurnaceTile interface {
	Kind() FurnaceKind
	BurnTime() int
	SetBurnTime(int)
	CookTime() int
	SetCookTime(int)
	CookTimeTotal() int
	SetCookTimeTotal(int)
	Smelting() *ItemStack
	SetSmelting(*ItemStack)
	Fuel() *ItemStack
	SetFuel(*ItemStack)
	Result() *ItemStack
	SetResult(*ItemStack)
	Update()
}

// World is the engine's view of one loaded world.
type World interface {
	Name() string
	BlockAt(Vec3i) Block
	ChunkLoaded(cx, cz int) bool
	LoadedChunks() []ChunkKey
}

// WorldLookup resolves a world by name; a world may disappear between ticks
// when the engine unloads it.
type WorldLookup func(name string) (World, bool)

// Scheduler defers a function until after the engine finishes dispatching the
// current event cycle. A scheduler that has shut down silently drops work;
// dropped actions are re-derived from persisted state on next load.
type Scheduler interface {
	NextTick(fn func())
}

// PreciseCookTime is an optional engine capability for adjusting the total
// cook time of an in-progress smelt. Engines without it return false and
// callers degrade to coarser behavior.
type PreciseCookTime interface {
	SetCookTimeTotal(b Block, ticks int) bool
}
