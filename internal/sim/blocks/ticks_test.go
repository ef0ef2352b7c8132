package blocks

import (
	"testing"

	"enchantedblocks.dev/internal/sim/host"
)

func TestScaledTicks(t *testing.T) {
	cases := []struct {
		base, modifier int
		fraction       float64
		want           int
	}{
		{200, 0, 0.5, 200},
		{200, 4, 0.5, 66},
		{20, -2, 0.2, 28},
		{200, 1, 0.5, 133},
		{1, 10, 0.5, 1},
		{32000, -5, 0.5, 32767},
		{0, 0, 0.5, 1},
	}
	for _, c := range cases {
		if got := ScaledTicks(c.base, c.modifier, c.fraction); got != c.want {
			t.Fatalf("ScaledTicks(%d, %d, %v) = %d, want %d", c.base, c.modifier, c.fraction, got, c.want)
		}
	}
}

func TestCookFraction(t *testing.T) {
	cases := []struct {
		kind     host.FurnaceKind
		modifier int
		want     float64
	}{
		{host.KindFurnace, 3, 0.5},
		{host.KindFurnace, -3, 0.5},
		{host.KindSmoker, 3, 1.0},
		{host.KindSmoker, -3, 0.25},
		{host.KindBlastFurnace, 0, 0.25},
	}
	for _, c := range cases {
		if got := cookFraction(c.kind, c.modifier); got != c.want {
			t.Fatalf("cookFraction(%v, %d) = %v, want %v", c.kind, c.modifier, got, c.want)
		}
	}
}
