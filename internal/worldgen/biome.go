package worldgen

import "voxelstream/internal/world"

// BiomeRegionSize is the biome region edge length in chunks.
const BiomeRegionSize = 16

// CaveSettings parameterizes the two cave passes.
type CaveSettings struct {
	Enabled   bool
	MinY      int
	MaxY      int
	Frequency float64
	Threshold float64

	// Tunnel density bonus layers: Gaussian falloff centered on
	// LayerPeakY, repeating every LayerSpacing blocks.
	LayerPeakY   float64
	LayerSpacing float64
	LayerBonus   float64

	CheeseEnabled   bool
	CheeseFrequency float64
	CheeseThreshold float64
}

// CliffSettings parameterizes the cliff feature.
type CliffSettings struct {
	Enabled   bool
	Frequency float64
	Threshold float64
	MaxHeight int
	Block     world.BlockID
}

// OreSettings parameterizes one ore feature.
type OreSettings struct {
	Block       world.BlockID
	Frequency   int // placement attempts per chunk
	PeakY       float64
	YSpread     float64
	MinY        int
	MaxY        int
	VeinSize    int
	Replaceable []world.BlockID
	Salt        int64
}

// WaterSettings parameterizes the water flood pass.
type WaterSettings struct {
	Enabled         bool
	Level           int
	RegionFrequency float64
	RegionThreshold float64
	MinDepth        int
	Liquid          world.BlockID
}

// TreeSettings parameterizes tree seeding.
type TreeSettings struct {
	Density  float64 // expected trees per chunk, 0-64
	TrunkMin int
	TrunkMax int
	Wood     world.BlockID
	Leaves   world.BlockID
}

// Biome is one resolved biome configuration.
type Biome struct {
	Name string

	HeightOffset    float64
	HeightAmplitude float64

	Surface         world.BlockID
	Subsurface      world.BlockID
	SubsurfaceDepth int
	Base            world.BlockID

	Caves CaveSettings
	Cliff CliffSettings
	Ores  []OreSettings
	Water WaterSettings
	Trees TreeSettings
}

// Neighbor slots in BiomeBlendData, around the primary region.
const (
	NeighborN = iota
	NeighborS
	NeighborE
	NeighborW
	NeighborNE
	NeighborNW
	NeighborSE
	NeighborSW
	NeighborCount
)

// BiomeBlendData carries the primary biome plus the eight surrounding
// region biomes and the chunk's position inside its region. It is built on
// the main task and shipped to generation workers by value.
type BiomeBlendData struct {
	Primary   *Biome
	Neighbors [NeighborCount]*Biome

	// Chunk position within the 16x16-chunk region, each in [0,16).
	LocalX int
	LocalZ int
}

// BiomeMap deterministically assigns biomes to regions.
type BiomeMap struct {
	seed   int64
	biomes []*Biome
}

// NewBiomeMap creates a region->biome assignment for a seed.
func NewBiomeMap(seed int64, biomes []*Biome) *BiomeMap {
	return &BiomeMap{seed: seed, biomes: biomes}
}

// BiomeForRegion picks the biome of a region.
func (m *BiomeMap) BiomeForRegion(rx, rz int64) *Biome {
	if len(m.biomes) == 0 {
		return nil
	}
	v := world.PositionRandom(m.seed, rx, rz, 0xB10)
	i := int(v * float64(len(m.biomes)))
	if i >= len(m.biomes) {
		i = len(m.biomes) - 1
	}
	return m.biomes[i]
}

// BlendFor assembles the blend data for a chunk.
func (m *BiomeMap) BlendFor(chunkX, chunkZ int64) BiomeBlendData {
	rx := floorDiv64(chunkX, BiomeRegionSize)
	rz := floorDiv64(chunkZ, BiomeRegionSize)

	var b BiomeBlendData
	b.Primary = m.BiomeForRegion(rx, rz)
	b.Neighbors[NeighborN] = m.BiomeForRegion(rx, rz+1)
	b.Neighbors[NeighborS] = m.BiomeForRegion(rx, rz-1)
	b.Neighbors[NeighborE] = m.BiomeForRegion(rx+1, rz)
	b.Neighbors[NeighborW] = m.BiomeForRegion(rx-1, rz)
	b.Neighbors[NeighborNE] = m.BiomeForRegion(rx+1, rz+1)
	b.Neighbors[NeighborNW] = m.BiomeForRegion(rx-1, rz+1)
	b.Neighbors[NeighborSE] = m.BiomeForRegion(rx+1, rz-1)
	b.Neighbors[NeighborSW] = m.BiomeForRegion(rx-1, rz-1)
	b.LocalX = mod64(chunkX, BiomeRegionSize)
	b.LocalZ = mod64(chunkZ, BiomeRegionSize)
	return b
}

// neighborAt maps a (dx,dz) in {-1,0,1} to the blend slot, nil-safe.
func (b *BiomeBlendData) neighborAt(dx, dz int) *Biome {
	switch {
	case dx == 0 && dz == 0:
		return b.Primary
	case dx == 0 && dz == 1:
		return b.Neighbors[NeighborN]
	case dx == 0 && dz == -1:
		return b.Neighbors[NeighborS]
	case dx == 1 && dz == 0:
		return b.Neighbors[NeighborE]
	case dx == -1 && dz == 0:
		return b.Neighbors[NeighborW]
	case dx == 1 && dz == 1:
		return b.Neighbors[NeighborNE]
	case dx == -1 && dz == 1:
		return b.Neighbors[NeighborNW]
	case dx == 1 && dz == -1:
		return b.Neighbors[NeighborSE]
	default:
		return b.Neighbors[NeighborSW]
	}
}

// BlendedHeightParams returns the height offset and amplitude at a block
// position, linearly weighted across the primary and neighbor regions by
// the position's distance to the region boundary.
func (b *BiomeBlendData) BlendedHeightParams(localBlockX, localBlockZ int) (offset, amplitude float64) {
	regionSpan := float64(BiomeRegionSize * world.ChunkSizeX)
	fx := (float64(b.LocalX*world.ChunkSizeX+localBlockX) + 0.5) / regionSpan
	fz := (float64(b.LocalZ*world.ChunkSizeZ+localBlockZ) + 0.5) / regionSpan

	wxNeg := 0.5 - fx
	if wxNeg < 0 {
		wxNeg = 0
	}
	wxPos := fx - 0.5
	if wxPos < 0 {
		wxPos = 0
	}
	wzNeg := 0.5 - fz
	if wzNeg < 0 {
		wzNeg = 0
	}
	wzPos := fz - 0.5
	if wzPos < 0 {
		wzPos = 0
	}

	wx := [3]float64{wxNeg, 1 - wxNeg - wxPos, wxPos}
	wz := [3]float64{wzNeg, 1 - wzNeg - wzPos, wzPos}

	total := 0.0
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			biome := b.neighborAt(dx, dz)
			if biome == nil {
				continue
			}
			w := wx[dx+1] * wz[dz+1]
			if w <= 0 {
				continue
			}
			offset += biome.HeightOffset * w
			amplitude += biome.HeightAmplitude * w
			total += w
		}
	}
	if total > 0 {
		offset /= total
		amplitude /= total
	}
	return offset, amplitude
}

func floorDiv64(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod64(a, b int64) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return int(r)
}
