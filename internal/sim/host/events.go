package host

// BurnEvent fires when a furnace is about to consume a unit of fuel.
// Handlers may rewrite BurnTime or cancel the consumption entirely.
type BurnEvent struct {
	Block     Block
	Fuel      *ItemStack
	BurnTime  int
	Cancelled bool
}

// SmeltEvent fires when a furnace finishes cooking one input item. Result is
// the stack the engine will place in the output slot; handlers may replace it.
type SmeltEvent struct {
	Block  Block
	Source *ItemStack
	Result *ItemStack
}
