package world

import "testing"

func TestColumnWorldYAddressing(t *testing.T) {
	c := NewChunkColumn(ChunkCoord{})
	// Writes auto-create the owning sub-chunk
	if !c.SetBlock(0, 200, 0, BlockStone) {
		t.Fatal("SetBlock reported no change")
	}
	if c.SubChunk(200/SubChunkHeight, false) == nil {
		t.Fatal("sub-chunk not auto-created")
	}
	if b := c.GetBlock(0, 200, 0); b != BlockStone {
		t.Errorf("got %v", b)
	}
	// Reads on missing sub-chunks default to air / full sky
	if b := c.GetBlock(5, 900, 5); b != BlockAir {
		t.Errorf("missing sub-chunk read = %v, want air", b)
	}
	if l := c.GetSkylight(5, 900, 5); l != 15 {
		t.Errorf("missing sub-chunk skylight = %d, want 15", l)
	}
}

func TestColumnOutOfWorldY(t *testing.T) {
	c := NewChunkColumn(ChunkCoord{})
	if c.SetBlock(0, -1, 0, BlockStone) {
		t.Error("write below world reported change")
	}
	if c.SetBlock(0, WorldHeight, 0, BlockStone) {
		t.Error("write above world reported change")
	}
	if b := c.GetBlock(0, -5, 0); b != BlockAir {
		t.Errorf("below-world read = %v", b)
	}
}

func TestGetHighestBlockAt(t *testing.T) {
	c := NewChunkColumn(ChunkCoord{})
	if h := c.GetHighestBlockAt(0, 0); h != -1 {
		t.Errorf("empty column highest = %d, want -1", h)
	}
	c.SetBlock(0, 10, 0, BlockStone)
	c.SetBlock(0, 500, 0, BlockStone)
	if h := c.GetHighestBlockAt(0, 0); h != 500 {
		t.Errorf("highest = %d, want 500", h)
	}
}

func TestGetGroundedHeightAt(t *testing.T) {
	c := NewChunkColumn(ChunkCoord{})
	if _, ok := c.GetGroundedHeightAt(0, 0); ok {
		t.Error("air-at-zero column reported grounded")
	}
	for y := 0; y <= 20; y++ {
		c.SetBlock(0, y, 0, BlockStone)
	}
	// Floating block above a gap must not count
	c.SetBlock(0, 40, 0, BlockStone)
	h, ok := c.GetGroundedHeightAt(0, 0)
	if !ok || h != 20 {
		t.Errorf("grounded height = %d,%v, want 20,true", h, ok)
	}
}

func TestManagerLRUEviction(t *testing.T) {
	m := NewChunkManager(4)
	var evicted []ChunkCoord
	m.OnEvict = func(col *ChunkColumn) { evicted = append(evicted, col.Coord) }

	for z := int64(0); z <= 4; z++ {
		m.LoadColumn(ChunkCoord{X: 0, Z: z})
	}
	if m.Len() != 4 {
		t.Fatalf("len = %d, want 4", m.Len())
	}
	if m.Has(ChunkCoord{X: 0, Z: 0}) {
		t.Error("oldest column (0,0) still loaded")
	}
	for z := int64(1); z <= 4; z++ {
		if !m.Has(ChunkCoord{X: 0, Z: z}) {
			t.Errorf("column (0,%d) missing", z)
		}
	}
	if len(evicted) != 1 || evicted[0] != (ChunkCoord{X: 0, Z: 0}) {
		t.Errorf("evictions = %v", evicted)
	}
}

func TestManagerLRUAccessRefreshes(t *testing.T) {
	m := NewChunkManager(2)
	m.LoadColumn(ChunkCoord{X: 1})
	m.LoadColumn(ChunkCoord{X: 2})
	// Touch (1) so (2) becomes the eviction candidate
	m.Column(ChunkCoord{X: 1})
	m.LoadColumn(ChunkCoord{X: 3})
	if !m.Has(ChunkCoord{X: 1}) {
		t.Error("recently accessed column evicted")
	}
	if m.Has(ChunkCoord{X: 2}) {
		t.Error("stale column survived")
	}
}

func TestManagerClear(t *testing.T) {
	m := NewChunkManager(8)
	m.LoadColumn(ChunkCoord{X: 1})
	m.LoadColumn(ChunkCoord{X: 2})
	m.Clear()
	if m.Len() != 0 {
		t.Errorf("len after clear = %d", m.Len())
	}
}
