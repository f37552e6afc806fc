// Package registry holds the immutable static content tables the
// simulation reads from: block, item, mob, and recipe metadata.
// Tables are built once at package init into read-only maps and are
// safe to read from every room's goroutine without synchronization.
package registry

import "sort"

// ToolType identifies the category of tool required to mine efficiently.
type ToolType string

const (
	ToolNone   ToolType = ""
	ToolHand   ToolType = "hand"
	ToolWood   ToolType = "wood_pick"
	ToolStone  ToolType = "stone_pick"
	ToolIron   ToolType = "iron_pick"
	ToolDiamond ToolType = "diamond_pick"
	ToolAxe    ToolType = "axe"
	ToolSword  ToolType = "sword"
)

// toolTierRank ranks tool materials for the "requiredTier" gate on mining.
var toolTierRank = map[ToolType]int{
	ToolNone:    0,
	ToolHand:    0,
	ToolWood:    1,
	ToolStone:   2,
	ToolIron:    3,
	ToolDiamond: 4,
}

// TierOf returns the tier rank of a tool type; unknown tools rank 0.
func TierOf(t ToolType) int { return toolTierRank[t] }

// Drop is one entry in a block or mob's drop table.
type Drop struct {
	Item   string
	Chance float64
	Min    int
	Max    int
}

// Block describes static properties of one block id.
type Block struct {
	ID             string
	Hardness       float64
	PreferredTool  ToolType
	RequiredTier   int
	Walkable       bool
	Solid          bool
	EmitsLight     int
	Drops          []Drop
	// ExposedForm maps a biome tag to the block id left behind after
	// this block is mined, so deserts expose sand and snowfields snow.
	ExposedForm map[string]string
}

// Item describes static properties of one item id.
type Item struct {
	ID          string
	MaxStack    int
	ToolType    ToolType
	MiningSpeed float64
	Damage      int
	EdibleBits  int // 0 = not edible
	Placeable   bool
	PlacesBlock string
}

// MobStats describes static properties of one mob type.
type MobStats struct {
	ID       string
	Health   int
	Damage   int
	Speed    int // tiles per MOB_MOVE_INTERVAL
	Hostile  bool
	AggroRng int // L1 distance hostile mobs notice players within
	Drops    []Drop
}

// RecipeInput is one ingredient slot (shaped or shapeless).
type RecipeInput struct {
	Item  string
	Count int
}

// Recipe describes a crafting transformation.
type Recipe struct {
	ID             string
	Inputs         []RecipeInput
	Output         RecipeInput
	RequiresTable  bool
	RequiresFurnace bool
}

var (
	blocks  = map[string]Block{}
	items   = map[string]Item{}
	mobs    = map[string]MobStats{}
	recipes = map[string]Recipe{}
)

func init() {
	for _, b := range []Block{
		// Walkable = a player or mob can stand on the tile (top-down
		// board semantics); Solid = the tile is an obstruction that
		// blocks placement and pathing.
		{ID: "air", Hardness: 0, Walkable: true, Solid: false},
		{ID: "grass", Hardness: 0.6, PreferredTool: ToolNone, Walkable: true, Solid: false,
			Drops:       []Drop{{Item: "dirt", Chance: 1, Min: 1, Max: 1}},
			ExposedForm: map[string]string{"plains": "grass", "desert": "sand", "snowy": "snow_block", "forest": "grass"}},
		{ID: "stone", Hardness: 1.5, PreferredTool: ToolWood, RequiredTier: 1, Walkable: false, Solid: true,
			Drops: []Drop{{Item: "cobblestone", Chance: 1, Min: 1, Max: 1}},
			ExposedForm: map[string]string{"plains": "grass", "desert": "sand", "snowy": "snow_block", "forest": "grass"}},
		{ID: "ore_iron", Hardness: 3.0, PreferredTool: ToolStone, RequiredTier: 2, Walkable: false, Solid: true,
			Drops: []Drop{{Item: "iron_ore", Chance: 1, Min: 1, Max: 1}},
			ExposedForm: map[string]string{"plains": "grass", "desert": "sand", "snowy": "snow_block", "forest": "grass"}},
		{ID: "ore_diamond", Hardness: 3.0, PreferredTool: ToolIron, RequiredTier: 3, Walkable: false, Solid: true,
			Drops: []Drop{{Item: "diamond", Chance: 1, Min: 1, Max: 1}},
			ExposedForm: map[string]string{"plains": "grass", "desert": "sand", "snowy": "snow_block", "forest": "grass"}},
		{ID: "wood", Hardness: 2.0, PreferredTool: ToolAxe, Walkable: false, Solid: true,
			Drops: []Drop{{Item: "wood", Chance: 1, Min: 1, Max: 4}},
			ExposedForm: map[string]string{"plains": "grass", "desert": "sand", "snowy": "snow_block", "forest": "grass"}},
		{ID: "sand", Hardness: 0.5, Walkable: true, Solid: false,
			Drops: []Drop{{Item: "sand", Chance: 1, Min: 1, Max: 1}}},
		{ID: "snow_block", Hardness: 0.2, Walkable: true, Solid: false,
			Drops: []Drop{{Item: "snowball", Chance: 1, Min: 1, Max: 4}}},
		{ID: "water", Hardness: 0, Walkable: false, Solid: false},
		{ID: "corruption", Hardness: 0, Walkable: false, Solid: true, EmitsLight: 4},
	} {
		blocks[b.ID] = b
	}

	for _, it := range []Item{
		{ID: "fist", MaxStack: 1, ToolType: ToolHand, MiningSpeed: 1, Damage: 1},
		{ID: "wood_pickaxe", MaxStack: 1, ToolType: ToolWood, MiningSpeed: 2, Damage: 2},
		{ID: "stone_pickaxe", MaxStack: 1, ToolType: ToolStone, MiningSpeed: 4, Damage: 3},
		{ID: "iron_pickaxe", MaxStack: 1, ToolType: ToolIron, MiningSpeed: 6, Damage: 4},
		{ID: "diamond_pickaxe", MaxStack: 1, ToolType: ToolDiamond, MiningSpeed: 8, Damage: 5},
		{ID: "iron_sword", MaxStack: 1, ToolType: ToolSword, MiningSpeed: 1, Damage: 6},
		{ID: "wood_axe", MaxStack: 1, ToolType: ToolAxe, MiningSpeed: 3, Damage: 3},
		{ID: "bread", MaxStack: 64, EdibleBits: 4},
		{ID: "apple", MaxStack: 64, EdibleBits: 2},
		{ID: "dirt", MaxStack: 64, Placeable: true, PlacesBlock: "grass"},
		{ID: "cobblestone", MaxStack: 64, Placeable: true, PlacesBlock: "stone"},
		{ID: "wood", MaxStack: 64, Placeable: true, PlacesBlock: "wood"},
		{ID: "iron_ore", MaxStack: 64},
		{ID: "diamond", MaxStack: 64},
		{ID: "sand", MaxStack: 64, Placeable: true, PlacesBlock: "sand"},
		{ID: "snowball", MaxStack: 16},
	} {
		items[it.ID] = it
	}

	for _, m := range []MobStats{
		{ID: "zombie", Health: 20, Damage: 3, Speed: 1, Hostile: true, AggroRng: 12,
			Drops: []Drop{{Item: "rotten_flesh", Chance: 0.5, Min: 0, Max: 2}}},
		{ID: "skeleton", Health: 16, Damage: 2, Speed: 1, Hostile: true, AggroRng: 12,
			Drops: []Drop{{Item: "bone", Chance: 0.5, Min: 0, Max: 2}}},
		{ID: "pig", Health: 10, Damage: 0, Speed: 1, Hostile: false,
			Drops: []Drop{{Item: "raw_pork", Chance: 1, Min: 1, Max: 2}}},
		{ID: "cow", Health: 10, Damage: 0, Speed: 1, Hostile: false,
			Drops: []Drop{{Item: "raw_beef", Chance: 1, Min: 1, Max: 2}}},
		{ID: "raider", Health: 24, Damage: 4, Speed: 1, Hostile: true, AggroRng: 20,
			Drops: []Drop{{Item: "corrupted_shard", Chance: 0.25, Min: 1, Max: 1}}},
	} {
		mobs[m.ID] = m
	}

	for _, r := range []Recipe{
		{ID: "wood_pickaxe", Inputs: []RecipeInput{{Item: "wood", Count: 3}}, Output: RecipeInput{Item: "wood_pickaxe", Count: 1}, RequiresTable: true},
		{ID: "stone_pickaxe", Inputs: []RecipeInput{{Item: "cobblestone", Count: 3}, {Item: "wood", Count: 2}}, Output: RecipeInput{Item: "stone_pickaxe", Count: 1}, RequiresTable: true},
		{ID: "iron_pickaxe", Inputs: []RecipeInput{{Item: "iron_ingot", Count: 3}, {Item: "wood", Count: 2}}, Output: RecipeInput{Item: "iron_pickaxe", Count: 1}, RequiresTable: true},
		{ID: "iron_ingot", Inputs: []RecipeInput{{Item: "iron_ore", Count: 1}}, Output: RecipeInput{Item: "iron_ingot", Count: 1}, RequiresFurnace: true},
		{ID: "bread", Inputs: []RecipeInput{{Item: "wheat", Count: 3}}, Output: RecipeInput{Item: "bread", Count: 1}, RequiresTable: true},
	} {
		recipes[r.ID] = r
	}
}

// BlockByID looks up a block id; the zero Block (air-like, hardness 0) is
// returned for unknown ids so callers never need a separate "ok" check
// on a simulation-internal lookup.
func BlockByID(id string) Block {
	if b, ok := blocks[id]; ok {
		return b
	}
	return Block{ID: id, Walkable: true}
}

// ItemByID looks up an item id.
func ItemByID(id string) (Item, bool) {
	it, ok := items[id]
	return it, ok
}

// MobByID looks up mob stats.
func MobByID(id string) (MobStats, bool) {
	m, ok := mobs[id]
	return m, ok
}

// HostileMobIDs returns every registered hostile mob type id, sorted
// so seeded random draws over the slice are reproducible.
func HostileMobIDs() []string {
	var out []string
	for id, m := range mobs {
		if m.Hostile {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// PassiveMobIDs returns every registered non-hostile mob type id,
// sorted for the same reason.
func PassiveMobIDs() []string {
	var out []string
	for id, m := range mobs {
		if !m.Hostile {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// RecipeByID looks up a recipe.
func RecipeByID(id string) (Recipe, bool) {
	r, ok := recipes[id]
	return r, ok
}

// CanCraft reports whether every ingredient of recipe is present in
// sufficient quantity in inventory and the recipe's station predicate
// holds.
func CanCraft(recipe Recipe, inventory map[string]int, nearCraftingTable, nearFurnace bool) bool {
	if recipe.RequiresTable && !nearCraftingTable {
		return false
	}
	if recipe.RequiresFurnace && !nearFurnace {
		return false
	}
	for _, in := range recipe.Inputs {
		if inventory[in.Item] < in.Count {
			return false
		}
	}
	return true
}
