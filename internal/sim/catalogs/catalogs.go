// Package catalogs loads the static game-data documents: materials,
// enchantments and cooking recipes. Documents are JSON, validated against the
// schemas under schemas/ and fingerprinted so operators can tell at a glance
// whether two servers run the same data.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"enchantedblocks.dev/internal/sim/enchant"
	"enchantedblocks.dev/internal/sim/host"
)

type Catalogs struct {
	Materials    MaterialCatalog
	Enchantments EnchantmentCatalog
	Recipes      RecipeCatalog
}

type MaterialCatalog struct {
	Defs   map[host.Material]MaterialDef
	Digest string
}

type MaterialDef struct {
	ID            string `json:"id"`
	MaxStack      int    `json:"max_stack"`
	MaxDurability int    `json:"max_durability,omitempty"`
	Block         bool   `json:"block,omitempty"`
	Book          bool   `json:"book,omitempty"`
	RepairedBy    string `json:"repaired_by,omitempty"`
}

type EnchantmentCatalog struct {
	Defs   map[host.Enchant]enchant.Enchantment
	Digest string
}

type enchantmentDef struct {
	ID             string   `json:"id"`
	Weight         int      `json:"weight"`
	MaxLevel       int      `json:"max_level"`
	Thresholds     []int    `json:"thresholds"`
	Conflicts      []string `json:"conflicts,omitempty"`
	CostMultiplier int      `json:"cost_multiplier,omitempty"`
}

type RecipeCatalog struct {
	Cooking []CookingRecipe
	ByID    map[string]CookingRecipe
	Digest  string
}

// CookingRecipe is one furnace-family recipe. Kind pairs a recipe with the
// furnace sub-type that may run it. InputData -1 matches any data value.
type CookingRecipe struct {
	ID          string `json:"recipe_id"`
	Kind        string `json:"kind"`
	Input       string `json:"input"`
	InputData   int16  `json:"input_data"`
	Result      string `json:"result"`
	ResultCount int    `json:"result_count"`
	CookTicks   int    `json:"cook_ticks"`
}

const (
	KindSmelting = "SMELTING"
	KindBlasting = "BLASTING"
	KindSmoking  = "SMOKING"
)

// Load reads and validates all catalogs from configDir, with schemas from
// schemaDir (empty to skip validation, e.g. in minimal test setups).
func Load(configDir, schemaDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadMaterials(filepath.Join(configDir, "materials.json"), schemaDir, &c.Materials); err != nil {
		return nil, err
	}
	if err := loadEnchantments(filepath.Join(configDir, "enchantments.json"), schemaDir, &c.Enchantments); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), schemaDir, &c.Recipes); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadMaterials(path, schemaDir string, out *MaterialCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := validateSchema(schemaDir, "materials.schema.json", raw); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}

	var defs []MaterialDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	out.Defs = map[host.Material]MaterialDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("materials.json: empty id")
		}
		if d.MaxStack <= 0 {
			d.MaxStack = 64
		}
		out.Defs[host.Material(d.ID)] = d
	}
	return nil
}

func loadEnchantments(path, schemaDir string, out *EnchantmentCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := validateSchema(schemaDir, "enchantments.schema.json", raw); err != nil {
		return fmt.Errorf("enchantments.json: %w", err)
	}

	var defs []enchantmentDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("enchantments.json: %w", err)
	}
	out.Defs = map[host.Enchant]enchant.Enchantment{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("enchantments.json: empty id")
		}
		conflicts := make([]host.Enchant, 0, len(d.Conflicts))
		for _, c := range d.Conflicts {
			conflicts = append(conflicts, host.Enchant(c))
		}
		out.Defs[host.Enchant(d.ID)] = enchant.Enchantment{
			ID:             host.Enchant(d.ID),
			Weight:         d.Weight,
			MaxLevel:       d.MaxLevel,
			Thresholds:     d.Thresholds,
			Conflicts:      conflicts,
			CostMultiplier: d.CostMultiplier,
		}
	}
	return nil
}

func loadRecipes(path, schemaDir string, out *RecipeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := validateSchema(schemaDir, "recipes.schema.json", raw); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}

	var defs []CookingRecipe
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]CookingRecipe{}
	for _, r := range defs {
		if r.ID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		if r.ResultCount <= 0 {
			r.ResultCount = 1
		}
		if r.CookTicks <= 0 {
			r.CookTicks = 200
		}
		out.Cooking = append(out.Cooking, r)
		out.ByID[r.ID] = r
	}
	return nil
}

// MaxStackSize returns the stack limit for a material; unknown materials get
// the common default of 64.
func (c *Catalogs) MaxStackSize(m host.Material) int {
	if d, ok := c.Materials.Defs[m]; ok {
		return d.MaxStack
	}
	return 64
}

// MaxDurability implements enchant.MaterialInfo.
func (c *Catalogs) MaxDurability(m host.Material) int {
	return c.Materials.Defs[m].MaxDurability
}

// RepairMaterial implements enchant.MaterialInfo.
func (c *Catalogs) RepairMaterial(m host.Material) (host.Material, bool) {
	d, ok := c.Materials.Defs[m]
	if !ok || d.RepairedBy == "" {
		return "", false
	}
	return host.Material(d.RepairedBy), true
}

// IsBook implements enchant.MaterialInfo.
func (c *Catalogs) IsBook(m host.Material) bool {
	return c.Materials.Defs[m].Book
}
