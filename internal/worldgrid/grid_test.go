package worldgrid

import "testing"

func TestGridGetSetRoundTrip(t *testing.T) {
	g := NewGrid(10, 10, "grass", "plains")
	g.Set(3, 4, Tile{BlockID: "stone", Biome: "plains"})
	got := g.Get(3, 4)
	if got.BlockID != "stone" {
		t.Fatalf("expected stone, got %q", got.BlockID)
	}
}

func TestGridOutOfBounds(t *testing.T) {
	g := NewGrid(4, 4, "grass", "plains")
	g.Set(-1, 0, Tile{BlockID: "stone"})
	g.Set(100, 0, Tile{BlockID: "stone"})
	if g.Get(-1, 0).BlockID != "" {
		t.Fatal("expected zero tile out of bounds")
	}
}

func TestL1Distance(t *testing.T) {
	if d := L1(0, 0, 3, 4); d != 7 {
		t.Fatalf("expected 7, got %d", d)
	}
}

func TestChunkedWorldSetGetRoundTrip(t *testing.T) {
	gen := func(seed int64, cx, cz int) *Chunk { return &Chunk{} }
	w := NewChunkedWorld(1, 8, 8, gen)
	w.SetBlock(5, 10, 5, 42)
	if got := w.GetBlock(5, 10, 5); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestChunkedWorldOutOfWorldIsAir(t *testing.T) {
	gen := func(seed int64, cx, cz int) *Chunk { return &Chunk{} }
	w := NewChunkedWorld(1, 2, 2, gen)
	if got := w.GetBlock(10000, 10, 0); got != 0 {
		t.Fatal("expected air far outside world bounds")
	}
}

func TestChunkedWorldHeightMapIncrementalBumpAndRescan(t *testing.T) {
	gen := func(seed int64, cx, cz int) *Chunk { return &Chunk{} }
	w := NewChunkedWorld(1, 4, 4, gen)
	w.SetBlock(0, 5, 0, 1)
	if h := w.HeightAt(0, 0); h != 5 {
		t.Fatalf("expected height 5, got %d", h)
	}
	w.SetBlock(0, 10, 0, 1)
	if h := w.HeightAt(0, 0); h != 10 {
		t.Fatalf("expected height bumped to 10, got %d", h)
	}
	w.SetBlock(0, 10, 0, 0)
	if h := w.HeightAt(0, 0); h != 5 {
		t.Fatalf("expected rescan down to 5, got %d", h)
	}
}

func TestFindSpawnPointSolidWithAirAbove(t *testing.T) {
	gen := func(seed int64, cx, cz int) *Chunk { return &Chunk{} }
	w := NewChunkedWorld(1, 8, 8, gen)
	w.SetBlock(0, 0, 0, 1)
	x, y, z := w.FindSpawnPoint()
	if w.GetBlock(x, y-1, z) == 0 {
		t.Fatal("expected spawn point to sit atop a solid block")
	}
	if w.GetBlock(x, y, z) != 0 || w.GetBlock(x, y+1, z) != 0 {
		t.Fatal("expected two air blocks above spawn point")
	}
}
