package blocks

import "enchantedblocks.dev/internal/sim/host"

// Furnace tick counters are signed 16-bit on the wire; ScaledTicks never
// leaves [1, 32767].
const maxTicks = 32767

// ScaledTicks applies the shared timing law for burn and cook counters.
// A positive modifier shrinks the count, base/(1+m*f); a negative one widens
// it, base*(1+(-m)*f). Fractions truncate toward zero after clamping.
func ScaledTicks(base, modifier int, fraction float64) int {
	scaled := float64(base)
	switch {
	case modifier > 0:
		scaled = scaled / (1 + float64(modifier)*fraction)
	case modifier < 0:
		scaled = scaled * (1 + float64(-modifier)*fraction)
	}
	if scaled < 1 {
		return 1
	}
	if scaled > maxTicks {
		return maxTicks
	}
	return int(scaled)
}

// cookFraction is the fractional step for cook-time scaling. Smokers and
// blast furnaces already cook at double speed, so their step doubles when
// speeding up and halves otherwise; a plain furnace uses the base step.
func cookFraction(kind host.FurnaceKind, modifier int) float64 {
	f := 0.5
	if kind.Fast() {
		if modifier > 0 {
			f *= 2
		} else {
			f *= 0.5
		}
	}
	return f
}
