package worldgen

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"voxelstream/internal/world"
)

func testOpaque() world.OpacitySet {
	s := make(world.OpacitySet, 32)
	for _, id := range []world.BlockID{
		world.BlockStone, world.BlockDirt, world.BlockGrass, world.BlockSand,
		world.BlockBedrock, world.BlockSandstone, world.BlockCliffStone,
	} {
		s[id] = true
	}
	return s
}

func flatBiome() *Biome {
	return &Biome{
		Name:            "flat",
		HeightOffset:    0,
		HeightAmplitude: 0,
		Surface:         world.BlockGrass,
		Subsurface:      world.BlockDirt,
		SubsurfaceDepth: 3,
		Base:            world.BlockStone,
	}
}

func hillBiome() *Biome {
	b := flatBiome()
	b.Name = "hills"
	b.HeightAmplitude = 20
	return b
}

func blendOf(b *Biome) BiomeBlendData {
	var blend BiomeBlendData
	blend.Primary = b
	for i := range blend.Neighbors {
		blend.Neighbors[i] = b
	}
	return blend
}

func newRequest(coord world.SubChunkCoord, seed int64, blend BiomeBlendData) *Request {
	return &Request{
		Coord:    coord,
		Seed:     seed,
		SeaLevel: 64,
		Blend:    blend,
		Blocks:   make([]world.BlockID, world.SubChunkVolume),
		Light:    make([]byte, world.SubChunkVolume),
	}
}

func hashBlocks(blocks []world.BlockID) [32]byte {
	h := sha256.New()
	var buf [2]byte
	for _, b := range blocks {
		binary.LittleEndian.PutUint16(buf[:], uint16(b))
		h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func TestFlatTerrainLayout(t *testing.T) {
	g := NewGenerator(testOpaque())
	coord := world.SubChunkCoord{X: 0, Z: 0, SubY: 1} // covers Y 64..127
	res := g.Generate(newRequest(coord, 1, blendOf(flatBiome())))
	if res.Err != nil {
		t.Fatal(res.Err)
	}

	// seaLevel 64, amplitude 0: surface at world Y 64, local y 0.
	for _, p := range [][2]int{{0, 0}, {16, 16}, {31, 31}} {
		i := world.LocalToIndex(p[0], 0, p[1])
		if res.Blocks[i] != world.BlockGrass {
			t.Errorf("surface at (%d,64,%d) = %v, want grass", p[0], p[1], res.Blocks[i])
		}
		if res.Blocks[world.LocalToIndex(p[0], 1, p[1])] != world.BlockAir {
			t.Errorf("above surface not air at (%d,65,%d)", p[0], p[1])
		}
	}
	if res.MaxSolidY != 64 {
		t.Errorf("MaxSolidY = %d, want 64", res.MaxSolidY)
	}
	if res.HasTerrainAbove {
		t.Error("flat terrain reported terrain above")
	}
	if res.FullyOpaque {
		t.Error("sub-chunk with air reported fully opaque")
	}
}

func TestFlatTerrainBelowSurfaceLayers(t *testing.T) {
	g := NewGenerator(testOpaque())
	coord := world.SubChunkCoord{X: 0, Z: 0, SubY: 0} // Y 0..63
	res := g.Generate(newRequest(coord, 1, blendOf(flatBiome())))

	if res.Blocks[world.LocalToIndex(5, 0, 5)] != world.BlockBedrock {
		t.Error("Y=0 not bedrock")
	}
	// h=64, subsurfaceDepth=3: world 62,63 are dirt, 61 and below stone.
	if b := res.Blocks[world.LocalToIndex(5, 63, 5)]; b != world.BlockDirt {
		t.Errorf("Y=63 = %v, want dirt", b)
	}
	if b := res.Blocks[world.LocalToIndex(5, 62, 5)]; b != world.BlockDirt {
		t.Errorf("Y=62 = %v, want dirt", b)
	}
	if b := res.Blocks[world.LocalToIndex(5, 61, 5)]; b != world.BlockStone {
		t.Errorf("Y=61 = %v, want stone", b)
	}
	if !res.HasTerrainAbove {
		t.Error("surface above sub-chunk not flagged")
	}
}

func TestProvisionalSkylight(t *testing.T) {
	g := NewGenerator(testOpaque())
	coord := world.SubChunkCoord{X: 0, Z: 0, SubY: 1}
	res := g.Generate(newRequest(coord, 1, blendOf(flatBiome())))

	// Air above the surface carries full sky, the surface block none.
	if sky := res.Light[world.LocalToIndex(8, 1, 8)] >> 4; sky != 15 {
		t.Errorf("skylight above surface = %d, want 15", sky)
	}
	if sky := res.Light[world.LocalToIndex(8, 0, 8)] >> 4; sky != 0 {
		t.Errorf("skylight at surface block = %d, want 0", sky)
	}
}

func TestGenerationDeterminism(t *testing.T) {
	coords := []world.SubChunkCoord{
		{X: 0, Z: 0, SubY: 1},
		{X: 1, Z: 0, SubY: 1},
		{X: 0, Z: 1, SubY: 0},
		{X: -1, Z: -1, SubY: 1},
	}
	biome := hillBiome()
	biome.Caves = CaveSettings{
		Enabled: true, MinY: 4, MaxY: 100, Frequency: 0.02,
		Threshold: 0.02, LayerPeakY: 30, LayerSpacing: 28, LayerBonus: 0.01,
		CheeseEnabled: true, CheeseFrequency: 0.01, CheeseThreshold: 0.75,
	}
	biome.Ores = []OreSettings{{
		Block: world.BlockCoalOre, Frequency: 8, PeakY: 40, YSpread: 12,
		MinY: 4, MaxY: 100, VeinSize: 12,
		Replaceable: []world.BlockID{world.BlockStone}, Salt: 1,
	}}

	// Two passes in opposite dispatch order must produce identical bytes.
	first := make(map[world.SubChunkCoord][32]byte)
	for _, coord := range coords {
		g := NewGenerator(testOpaque())
		res := g.Generate(newRequest(coord, 42, blendOf(biome)))
		first[coord] = hashBlocks(res.Blocks)
	}
	for i := len(coords) - 1; i >= 0; i-- {
		g := NewGenerator(testOpaque())
		res := g.Generate(newRequest(coords[i], 42, blendOf(biome)))
		if hashBlocks(res.Blocks) != first[coords[i]] {
			t.Errorf("chunk %v not deterministic across dispatch orders", coords[i])
		}
	}
}

func TestOresRespectRangeAndHost(t *testing.T) {
	biome := flatBiome()
	biome.Ores = []OreSettings{{
		Block: world.BlockIronOre, Frequency: 32, PeakY: 30, YSpread: 10,
		MinY: 10, MaxY: 50, VeinSize: 8,
		Replaceable: []world.BlockID{world.BlockStone}, Salt: 2,
	}}
	g := NewGenerator(testOpaque())
	res := g.Generate(newRequest(world.SubChunkCoord{SubY: 0}, 7, blendOf(biome)))

	found := 0
	for i, b := range res.Blocks {
		if b != world.BlockIronOre {
			continue
		}
		found++
		_, y, _ := world.IndexToLocal(i)
		if y < 10 || y > 50 {
			t.Errorf("ore outside Y range at local y=%d", y)
		}
	}
	if found == 0 {
		t.Error("no ore placed with frequency 32")
	}
	// The host filter protects everything but stone: the surface layers
	// stay intact.
	if b := res.Blocks[world.LocalToIndex(0, 63, 0)]; b == world.BlockIronOre {
		t.Error("ore replaced a non-host block")
	}
}

func TestWaterFloodAndEdges(t *testing.T) {
	biome := flatBiome()
	biome.HeightOffset = -10 // terrain at 54, below water level
	biome.Water = WaterSettings{
		Enabled: true, Level: 64, RegionFrequency: 0.00001,
		RegionThreshold: -2, // always active
		MinDepth:        1, Liquid: world.BlockWater,
	}
	g := NewGenerator(testOpaque())
	res := g.Generate(newRequest(world.SubChunkCoord{SubY: 0}, 3, blendOf(biome)))

	if b := res.Blocks[world.LocalToIndex(16, 60, 16)]; b != world.BlockWater {
		t.Errorf("flooded cell = %v, want water", b)
	}
	// The level itself (world Y 64) is local y 0 of the sub-chunk above.
	upper := g.Generate(newRequest(world.SubChunkCoord{SubY: 1}, 3, blendOf(biome)))
	if b := upper.Blocks[world.LocalToIndex(16, 0, 16)]; b != world.BlockWater {
		t.Errorf("water level cell = %v, want water", b)
	}
	if !res.WaterEdges.Any() {
		t.Error("full flood reported no edge water")
	}
	for e := 0; e < EdgeCount; e++ {
		if !res.WaterEdges[e] {
			t.Errorf("edge %d not flagged on full flood", e)
		}
	}
}

func TestTreeSeedsOnSurfaceSubChunkOnly(t *testing.T) {
	biome := flatBiome()
	biome.Trees = TreeSettings{
		Density: 64, TrunkMin: 4, TrunkMax: 6,
		Wood: world.BlockWood, Leaves: world.BlockLeaves,
	}
	g := NewGenerator(testOpaque())

	// Surface is at 64, inside subY 1.
	surf := g.Generate(newRequest(world.SubChunkCoord{SubY: 1}, 5, blendOf(biome)))
	below := g.Generate(newRequest(world.SubChunkCoord{SubY: 0}, 5, blendOf(biome)))

	if len(surf.TreeSeeds) == 0 {
		t.Error("density 64 produced no tree seeds on the surface sub-chunk")
	}
	if len(below.TreeSeeds) != 0 {
		t.Errorf("sub-chunk below the surface produced %d seeds", len(below.TreeSeeds))
	}
	for _, s := range surf.TreeSeeds {
		if s.BaseY != 65 {
			t.Errorf("tree base = %d, want 65", s.BaseY)
		}
		if s.TrunkHeight < 4 || s.TrunkHeight > 6 {
			t.Errorf("trunk height = %d", s.TrunkHeight)
		}
	}
}

func TestCavesCarveBelowSurface(t *testing.T) {
	biome := flatBiome()
	biome.Caves = CaveSettings{
		Enabled: true, MinY: 4, MaxY: 60, Frequency: 0.05,
		Threshold: 0.3, // generous threshold so tunnels certainly appear
		LayerPeakY: 30, LayerSpacing: 28, LayerBonus: 0.05,
	}
	g := NewGenerator(testOpaque())
	res := g.Generate(newRequest(world.SubChunkCoord{SubY: 0}, 11, blendOf(biome)))

	air := 0
	for i, b := range res.Blocks {
		_, y, _ := world.IndexToLocal(i)
		if b == world.BlockAir && y >= 4 && y <= 60 {
			air++
		}
	}
	if air == 0 {
		t.Error("caves carved no air")
	}
	// Bedrock survives carving.
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			if res.Blocks[world.LocalToIndex(x, 0, z)] != world.BlockBedrock {
				t.Fatalf("bedrock carved at (%d,0,%d)", x, z)
			}
		}
	}
}

func TestWorkerPoolRoundTrip(t *testing.T) {
	g := NewGenerator(testOpaque())
	p := NewPool(2, g)
	defer p.Shutdown()

	req := newRequest(world.SubChunkCoord{SubY: 1}, 1, blendOf(flatBiome()))
	if !p.Dispatch(0, req) {
		t.Fatal("dispatch refused")
	}
	res := <-p.Results()
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Coord != req.Coord {
		t.Errorf("result coord = %v", res.Coord)
	}
	if len(res.Blocks) != world.SubChunkVolume {
		t.Errorf("blocks not returned")
	}
}

func BenchmarkGenerateSubChunk(b *testing.B) {
	biome := hillBiome()
	biome.Caves = CaveSettings{
		Enabled: true, MinY: 4, MaxY: 100, Frequency: 0.02, Threshold: 0.02,
		LayerPeakY: 30, LayerSpacing: 28, LayerBonus: 0.01,
	}
	g := NewGenerator(testOpaque())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Generate(newRequest(world.SubChunkCoord{SubY: 0}, 42, blendOf(biome)))
	}
}
