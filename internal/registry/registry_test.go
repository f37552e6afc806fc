package registry

import "testing"

func TestBlockByIDKnown(t *testing.T) {
	b := BlockByID("stone")
	if b.Hardness != 1.5 {
		t.Fatalf("unexpected hardness: %v", b.Hardness)
	}
	if b.RequiredTier != 1 {
		t.Fatalf("unexpected tier: %v", b.RequiredTier)
	}
}

func TestBlockByIDUnknownIsWalkableAir(t *testing.T) {
	b := BlockByID("nonexistent")
	if !b.Walkable {
		t.Fatal("unknown block id should default walkable")
	}
}

func TestGrassExposedFormByBiome(t *testing.T) {
	b := BlockByID("grass")
	if b.ExposedForm["desert"] != "sand" {
		t.Fatalf("expected desert exposed form sand, got %q", b.ExposedForm["desert"])
	}
	if b.ExposedForm["snowy"] != "snow_block" {
		t.Fatalf("expected snowy exposed form snow_block, got %q", b.ExposedForm["snowy"])
	}
}

func TestCanCraftMissingIngredient(t *testing.T) {
	r, ok := RecipeByID("wood_pickaxe")
	if !ok {
		t.Fatal("expected wood_pickaxe recipe")
	}
	inv := map[string]int{"wood": 2}
	if CanCraft(r, inv, true, false) {
		t.Fatal("expected craft to fail with insufficient wood")
	}
}

func TestCanCraftSucceeds(t *testing.T) {
	r, ok := RecipeByID("wood_pickaxe")
	if !ok {
		t.Fatal("expected wood_pickaxe recipe")
	}
	inv := map[string]int{"wood": 3}
	if !CanCraft(r, inv, true, false) {
		t.Fatal("expected craft to succeed")
	}
}

func TestCanCraftRequiresTable(t *testing.T) {
	r, ok := RecipeByID("wood_pickaxe")
	if !ok {
		t.Fatal("expected recipe")
	}
	inv := map[string]int{"wood": 10}
	if CanCraft(r, inv, false, false) {
		t.Fatal("expected craft to fail without nearby table")
	}
}

func TestCanCraftRequiresFurnace(t *testing.T) {
	r, ok := RecipeByID("iron_ingot")
	if !ok {
		t.Fatal("expected recipe")
	}
	inv := map[string]int{"iron_ore": 5}
	if CanCraft(r, inv, false, false) {
		t.Fatal("expected smelting to require furnace")
	}
	if !CanCraft(r, inv, false, true) {
		t.Fatal("expected smelting to succeed near furnace")
	}
}

func TestHostileAndPassiveMobLists(t *testing.T) {
	hostile := HostileMobIDs()
	passive := PassiveMobIDs()
	if len(hostile) == 0 || len(passive) == 0 {
		t.Fatal("expected at least one hostile and one passive mob")
	}
	for _, id := range hostile {
		m, _ := MobByID(id)
		if !m.Hostile {
			t.Fatalf("mob %s listed hostile but Hostile=false", id)
		}
	}
}
