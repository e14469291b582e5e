package lighting

import (
	"testing"

	"voxelstream/internal/world"
)

// buildCaveColumn builds a column with a solid ceiling sub-chunk (subY 1,
// stone at its bottom slab) and a stone sub-chunk below containing one
// sealed air pocket at local (16,40,16).
func buildCaveColumn() *ColumnView {
	lower := &SubVolume{SubY: 0,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, world.SubChunkVolume)}
	for i := range lower.Blocks {
		lower.Blocks[i] = world.BlockStone
	}
	lower.Blocks[world.LocalToIndex(16, 40, 16)] = world.BlockAir

	upper := &SubVolume{SubY: 1,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, world.SubChunkVolume)}

	return NewColumnView([]*SubVolume{lower, upper})
}

func TestCheckSkyAccess(t *testing.T) {
	p := NewPropagator(testBlocking())
	v := buildCaveColumn()
	if p.CheckSkyAccess(v, 16, 40, 16) {
		t.Error("sealed pocket reported sky access")
	}
	if !p.CheckSkyAccess(v, 16, 64, 16) {
		t.Error("open air above the stone reported no sky access")
	}
}

func TestRecalculateColumnDarkCave(t *testing.T) {
	p := NewPropagator(testBlocking())
	v := buildCaveColumn()
	p.RecalculateColumn(v)
	if s := v.SkyAt(16, 40, 16); s != 0 {
		t.Errorf("sealed pocket = %d, want 0", s)
	}
	if s := v.SkyAt(16, 64, 16); s != 15 {
		t.Errorf("open air above = %d, want 15", s)
	}
}

func TestCaveLightingAfterRemoval(t *testing.T) {
	// Scenario 2: open a shaft from the surface down to a pocket; the
	// pocket cell must go from 0 to something in (0, 15].
	p := NewPropagator(testBlocking())
	v := buildCaveColumn()
	p.RecalculateColumn(v)

	// Carve a vertical shaft above the pocket.
	sub := v.Sub(0)
	for y := 41; y < world.SubChunkHeight; y++ {
		sub.Blocks[world.LocalToIndex(16, y, 16)] = world.BlockAir
	}
	changed := p.UpdateLightingAt(v, 16, 63, 16, true)
	if len(changed) == 0 {
		t.Fatal("removal reported no changed sub-chunks")
	}
	s := v.SkyAt(16, 40, 16)
	if s == 0 || s > 15 {
		t.Errorf("pocket after shaft = %d, want (0,15]", s)
	}
}

func TestRemovalWithSkyAccessPoursDown(t *testing.T) {
	p := NewPropagator(testBlocking())
	// Single sub-chunk column of solid stone with a hollow shaft at (8,8)
	// closed by a stone lid in the top layer.
	sub := &SubVolume{SubY: 15,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, world.SubChunkVolume)}
	for i := range sub.Blocks {
		sub.Blocks[i] = world.BlockStone
	}
	// Hollow shaft below a lid.
	lidY := world.WorldHeight - 1
	for y := 0; y < world.SubChunkHeight-1; y++ {
		sub.Blocks[world.LocalToIndex(8, y, 8)] = world.BlockAir
	}
	v := NewColumnView([]*SubVolume{sub})
	p.RecalculateColumn(v)
	if s := v.SkyAt(8, lidY-1, 8); s != 0 {
		t.Fatalf("shaft under lid = %d before removal", s)
	}

	sub.Blocks[world.LocalToIndex(8, world.SubChunkHeight-1, 8)] = world.BlockAir
	p.UpdateLightingAt(v, 8, lidY, 8, true)

	if s := v.SkyAt(8, lidY, 8); s != 15 {
		t.Errorf("opened lid cell = %d, want 15", s)
	}
	if s := v.SkyAt(8, lidY-30, 8); s != 15 {
		t.Errorf("shaft cell far below = %d, want 15 (straight-down pour)", s)
	}
}

func TestPlacementCastsShadow(t *testing.T) {
	p := NewPropagator(testBlocking())
	sub := &SubVolume{SubY: 0,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, world.SubChunkVolume)}
	v := NewColumnView([]*SubVolume{sub})
	p.RecalculateColumn(v)
	if s := v.SkyAt(16, 10, 16); s != 15 {
		t.Fatalf("open column = %d", s)
	}

	sub.Blocks[world.LocalToIndex(16, 30, 16)] = world.BlockStone
	changed := p.UpdateLightingAt(v, 16, 30, 16, false)
	if len(changed) == 0 {
		t.Fatal("placement reported no change")
	}
	if s := v.SkyAt(16, 30, 16); s != 0 {
		t.Errorf("placed block = %d, want 0", s)
	}
	// Shadowed cells relight sideways to 14 (neighbors still carry 15).
	if s := v.SkyAt(16, 20, 16); s != 14 {
		t.Errorf("shadowed cell = %d, want 14", s)
	}
}

func TestWorkerRecalculateColumn(t *testing.T) {
	p := NewPool(1, NewPropagator(testBlocking()))
	defer p.Shutdown()

	v := buildCaveColumn()
	job := &Job{
		Kind:            JobRecalculateColumn,
		Coord:           world.ChunkCoord{},
		Subs:            []*SubVolume{v.Sub(0), v.Sub(1)},
		ForceRemeshSubY: -1,
	}
	if !p.TryDispatch(job) {
		t.Fatal("dispatch refused on idle pool")
	}
	res := <-p.Results()
	p.Release()
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if len(res.Subs) != 2 {
		t.Fatalf("got %d sub results", len(res.Subs))
	}
	// The open-air sub above the pocket starts dark, so relighting it
	// reports a change; the sealed sub below stays dark.
	anyChanged := false
	for _, s := range res.Subs {
		if s.Changed {
			anyChanged = true
		}
		if len(s.Light) != world.SubChunkVolume || len(s.Snapshot) != world.SubChunkVolume {
			t.Error("light/snapshot buffers missing")
		}
	}
	if !anyChanged {
		t.Error("relight of a dark column reported no change")
	}
}

func TestWorkerBlockEditMarksSeamNeighbors(t *testing.T) {
	p := NewPool(1, NewPropagator(testBlocking()))
	defer p.Shutdown()

	s0 := &SubVolume{SubY: 0,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, world.SubChunkVolume)}
	s1 := &SubVolume{SubY: 1,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, world.SubChunkVolume)}
	// Pre-lit open air.
	prop := NewPropagator(testBlocking())
	prop.RecalculateColumn(NewColumnView([]*SubVolume{s0, s1}))

	// Edit at the top cell of sub 0 (globalY 63): sub 1 faces are exposed.
	s0.Blocks[world.LocalToIndex(4, world.SubChunkHeight-1, 4)] = world.BlockStone
	job := &Job{
		Kind: JobUpdateBlockLighting, Coord: world.ChunkCoord{},
		Subs: []*SubVolume{s0, s1}, LocalX: 4, GlobalY: 63, LocalZ: 4,
		WasRemoved: false, ForceRemeshSubY: -1,
	}
	if !p.TryDispatch(job) {
		t.Fatal("dispatch refused")
	}
	res := <-p.Results()
	p.Release()

	var c0, c1 bool
	for _, s := range res.Subs {
		if s.SubY == 0 && s.Changed {
			c0 = true
		}
		if s.SubY == 1 && s.Changed {
			c1 = true
		}
	}
	if !c0 {
		t.Error("edited sub-chunk not marked changed")
	}
	if !c1 {
		t.Error("seam neighbor above not marked changed")
	}
}

func TestWorkerPanicBecomesError(t *testing.T) {
	p := NewPool(1, NewPropagator(testBlocking()))
	defer p.Shutdown()

	// A sub volume with a short light buffer trips an index panic inside
	// the propagator; the pool must return it as an error result.
	bad := &SubVolume{SubY: 0,
		Blocks: make([]world.BlockID, world.SubChunkVolume),
		Light:  make([]byte, 8)}
	job := &Job{Kind: JobRecalculateColumn, Subs: []*SubVolume{bad}, ForceRemeshSubY: -1}
	if !p.TryDispatch(job) {
		t.Fatal("dispatch refused")
	}
	res := <-p.Results()
	p.Release()
	if res.Err == nil {
		t.Error("bad input produced no error")
	}
}
