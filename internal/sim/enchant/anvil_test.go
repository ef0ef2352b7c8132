package enchant

import (
	"testing"

	"enchantedblocks.dev/internal/sim/host"
)

type testMaterials struct{}

func (testMaterials) MaxDurability(m host.Material) int {
	if m == "DIAMOND_SHOVEL" {
		return 1561
	}
	return 0
}

func (testMaterials) RepairMaterial(m host.Material) (host.Material, bool) {
	if m == "DIAMOND_SHOVEL" {
		return "DIAMOND", true
	}
	return "", false
}

func (testMaterials) IsBook(m host.Material) bool { return m == "ENCHANTED_BOOK" }

func testDefs() map[host.Enchant]Enchantment {
	defs := map[host.Enchant]Enchantment{}
	for _, e := range toolEnchants() {
		defs[e.ID] = e
	}
	return defs
}

func shovel(damage, repairCost int) *host.ItemStack {
	return &host.ItemStack{
		Material:   "DIAMOND_SHOVEL",
		Amount:     1,
		Damage:     damage,
		RepairCost: repairCost,
	}
}

func TestAnvil_RepairWithMaterial(t *testing.T) {
	op := Vanilla(testMaterials{}, testDefs())
	maxDamage := 1560
	perItem := 1561 / 4

	for _, avail := range []int{1, 64} {
		res := op.Apply(shovel(maxDamage, 0), &host.ItemStack{Material: "DIAMOND", Amount: avail})
		if res.RepairCount < 1 {
			t.Fatalf("repair must consume at least one material")
		}
		if res.RepairCount > avail {
			t.Fatalf("repair consumed %d items with only %d available", res.RepairCount, avail)
		}
		wantDamage := maxDamage - res.RepairCount*perItem
		if wantDamage < 0 {
			wantDamage = 0
		}
		if res.Result.Damage != wantDamage {
			t.Fatalf("avail %d: damage %d want %d", avail, res.Result.Damage, wantDamage)
		}
	}
}

func TestAnvil_RepairWithMerge(t *testing.T) {
	op := Vanilla(testMaterials{}, testDefs())
	maxDurability := 1561
	damaged := shovel(1560, 0)

	res := op.Apply(damaged.Clone(), damaged.Clone())
	remaining := 2*(maxDurability-1560) + maxDurability*12/100
	want := maxDurability - remaining
	if res.Result.Damage != want {
		t.Fatalf("merge repair damage %d want %d", res.Result.Damage, want)
	}
	if res.RepairCount != 0 {
		t.Fatalf("merge repair should not report consumed materials")
	}
}

func TestAnvil_CombineEnchants(t *testing.T) {
	enchants := map[host.Enchant]int{"efficiency": 4, "silk_touch": 1}

	for _, tc := range []struct {
		name     string
		added    host.Material
		vanilla  bool
		wantSilk int
		wantCost int
	}{
		{"vanilla book", "ENCHANTED_BOOK", true, 1, 9},
		{"vanilla item", "DIAMOND_SHOVEL", true, 1, 13},
		{"uncapped book", "ENCHANTED_BOOK", false, 2, 13},
		{"uncapped item", "DIAMOND_SHOVEL", false, 2, 21},
	} {
		var op *AnvilOperation
		if tc.vanilla {
			op = Vanilla(testMaterials{}, testDefs())
		} else {
			op = NewAnvilOperation(testMaterials{}, testDefs())
		}

		base := shovel(0, 0)
		added := &host.ItemStack{Material: tc.added, Amount: 1}
		base.Enchants = map[host.Enchant]int{}
		added.Enchants = map[host.Enchant]int{}
		for k, v := range enchants {
			base.Enchants[k] = v
			added.Enchants[k] = v
		}

		res := op.Apply(base, added)
		if res.Result.Material != "DIAMOND_SHOVEL" {
			t.Fatalf("%s: result should keep the base material", tc.name)
		}
		if got := res.Result.Enchants["efficiency"]; got != 5 {
			t.Fatalf("%s: efficiency got %d want 5", tc.name, got)
		}
		if got := res.Result.Enchants["silk_touch"]; got != tc.wantSilk {
			t.Fatalf("%s: silk_touch got %d want %d", tc.name, got, tc.wantSilk)
		}
		if res.Cost != tc.wantCost {
			t.Fatalf("%s: cost got %d want %d", tc.name, res.Cost, tc.wantCost)
		}
	}
}

func TestAnvil_RepairCostsAccumulate(t *testing.T) {
	op := Vanilla(testMaterials{}, testDefs())
	base := shovel(0, 2)
	added := shovel(0, 10)
	added.Enchants = map[host.Enchant]int{"unbreaking": 1}

	res := op.Apply(base, added)
	// unbreaking 1 on an item costs 1*2, plus both inputs' repair costs.
	if res.Cost != 2+10+2 {
		t.Fatalf("cost got %d want %d", res.Cost, 14)
	}
}

func TestAnvil_RenameAddsOne(t *testing.T) {
	op := NewAnvilOperation(testMaterials{}, testDefs())
	base := shovel(0, 0)
	added := &host.ItemStack{Material: "ENCHANTED_BOOK", Amount: 1, Enchants: map[host.Enchant]int{"efficiency": 1}}

	plain := op.Apply(base, added)
	op.SetRenameText("sample text")
	renamed := op.Apply(base, added)
	if renamed.Cost != plain.Cost+1 {
		t.Fatalf("rename should add 1: %d vs %d", renamed.Cost, plain.Cost)
	}
	if renamed.Result.Name != "sample text" {
		t.Fatalf("rename should set the result name")
	}
}

func TestAnvil_IncompatibleMaterialsYieldEmpty(t *testing.T) {
	op := Vanilla(testMaterials{}, testDefs())
	res := op.Apply(shovel(0, 0), &host.ItemStack{Material: "STONE", Amount: 1})
	if !res.Result.Empty() {
		t.Fatalf("non-combining materials must yield an empty result")
	}
	if res.Cost != 0 {
		t.Fatalf("empty result should carry no cost")
	}
}

func TestAnvil_SealedOperationPanics(t *testing.T) {
	op := Vanilla(testMaterials{}, testDefs())
	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s must panic on a sealed operation", name)
			}
		}()
		fn()
	}
	assertPanics("SetCombineEnchants", func() { op.SetCombineEnchants(false) })
	assertPanics("SetMergeRepairs", func() { op.SetMergeRepairs(false) })
	assertPanics("SetRenameText", func() { op.SetRenameText("x") })
	assertPanics("SetEnchantConflicts", func() { op.SetEnchantConflicts(nil) })
	assertPanics("SetEnchantMaxLevel", func() { op.SetEnchantMaxLevel(nil) })
	assertPanics("SetMaterialCombines", func() { op.SetMaterialCombines(nil) })
	assertPanics("SetMaterialRepairs", func() { op.SetMaterialRepairs(nil) })
}
