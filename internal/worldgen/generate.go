package worldgen

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

// Edge indices for WaterEdgeEffects.
const (
	EdgePosX = iota
	EdgeNegX
	EdgePosZ
	EdgeNegZ
	EdgeCount
)

// WaterEdgeEffects flags the chunk edges touched by placed water. The main
// task uses them to queue neighbor re-flood passes.
type WaterEdgeEffects [EdgeCount]bool

// Any reports whether any edge is touched.
func (w WaterEdgeEffects) Any() bool {
	return w[EdgePosX] || w[EdgeNegX] || w[EdgePosZ] || w[EdgeNegZ]
}

// TreeSeed is a tree position chosen by the worker. Trees span sub-chunk
// boundaries, so placement happens on the main task through column writes.
type TreeSeed struct {
	WorldX, WorldZ int64
	BaseY          int // first trunk block
	TrunkHeight    int
	Wood           world.BlockID
	Leaves         world.BlockID
}

// OrePosition reports one placed vein for observers.
type OrePosition struct {
	Block world.BlockID
	Pos   mgl32.Vec3
}

// Request is a generation job for one sub-chunk. Blocks and light are
// pre-allocated by the dispatcher and owned by the worker until the result
// returns them.
type Request struct {
	Coord    world.SubChunkCoord
	Seed     int64
	SeaLevel int
	Blend    BiomeBlendData
	Blocks   []world.BlockID
	Light    []byte
}

// Result carries the generated buffers back along with the summary data
// the schedulers need. Err is set instead of the payload when generation
// failed.
type Result struct {
	Coord world.SubChunkCoord

	Blocks []world.BlockID
	Light  []byte

	HasTerrainAbove bool
	MaxSolidY       int // world Y of the highest solid cell, -1 if none
	FullyOpaque     bool

	OrePositions []OrePosition
	TreeSeeds    []TreeSeed
	WaterEdges   WaterEdgeEffects

	Err error
}

// Generator produces sub-chunk contents. It is stateless apart from the
// opacity table, so one instance is shared by every worker.
type Generator struct {
	opaque world.OpacitySet
}

// NewGenerator creates a generator using the registry's opacity table.
func NewGenerator(opaque world.OpacitySet) *Generator {
	return &Generator{opaque: opaque}
}

// Generate runs every phase for one sub-chunk: terrain, caves, cliffs,
// ores, water flood, provisional skylight, then tree seeding.
func (g *Generator) Generate(req *Request) *Result {
	res := &Result{
		Coord:     req.Coord,
		Blocks:    req.Blocks,
		Light:     req.Light,
		MaxSolidY: -1,
	}
	if len(req.Blocks) != world.SubChunkVolume || len(req.Light) != world.SubChunkVolume {
		return res
	}
	if req.Blend.Primary == nil {
		return res
	}

	ctx := &genContext{
		req:     req,
		res:     res,
		gen:     g,
		noise:   world.NewNoise(req.Seed),
		minY:    req.Coord.MinWorldY(),
		heights: make([]int, world.LayerSize),
	}

	ctx.terrain()
	if req.Blend.Primary.Caves.Enabled {
		ctx.caves()
	}
	if req.Blend.Primary.Cliff.Enabled {
		ctx.cliffs()
	}
	ctx.ores()
	if req.Blend.Primary.Water.Enabled {
		ctx.water()
	}
	ctx.skylight()
	ctx.trees()
	ctx.summarize()
	return res
}

// genContext is the per-job working state.
type genContext struct {
	req   *Request
	res   *Result
	gen   *Generator
	noise *world.Noise

	minY int

	// Terrain surface height per column, world Y (after cliff lift).
	heights []int
}

func (c *genContext) block(x, y, z int) world.BlockID {
	i := world.LocalToIndex(x, y, z)
	if i < 0 {
		return world.BlockAir
	}
	return c.req.Blocks[i]
}

func (c *genContext) setBlock(x, y, z int, id world.BlockID) {
	i := world.LocalToIndex(x, y, z)
	if i < 0 {
		return
	}
	c.req.Blocks[i] = id
}

// terrainHeight computes the blended base terrain height at chunk-local
// (x,z). Works for slightly out-of-range locals so cliff comparisons can
// look one column past the edge.
func (c *genContext) terrainHeight(x, z int) int {
	wx := float64(c.req.Coord.X*world.ChunkSizeX + int64(x))
	wz := float64(c.req.Coord.Z*world.ChunkSizeZ + int64(z))
	offset, amplitude := c.req.Blend.BlendedHeightParams(x, z)
	n := c.noise.FractalNoise2D(wx, wz, 4, 0.5, 0.01)
	return int(math.Floor(float64(c.req.SeaLevel) + offset + n*amplitude))
}

// terrain fills each column from the blended heightmap within this
// sub-chunk's Y range.
func (c *genContext) terrain() {
	biome := c.req.Blend.Primary
	maxY := c.minY + world.SubChunkHeight - 1
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			h := c.terrainHeight(x, z)
			c.heights[z*world.ChunkSizeX+x] = h
			if h > maxY {
				c.res.HasTerrainAbove = true
			}
			top := h
			if top > maxY {
				top = maxY
			}
			for wy := c.minY; wy <= top; wy++ {
				var id world.BlockID
				switch {
				case wy == 0:
					id = world.BlockBedrock
				case wy == h:
					id = biome.Surface
				case wy > h-biome.SubsurfaceDepth:
					id = biome.Subsurface
				default:
					id = biome.Base
				}
				c.setBlock(x, wy-c.minY, z, id)
			}
		}
	}
}

// layerBonus is the tunnel density bonus at world Y: a Gaussian around the
// nearest bonus layer.
func layerBonus(s *CaveSettings, y float64) float64 {
	if s.LayerBonus == 0 || s.LayerSpacing <= 0 {
		return 0
	}
	k := math.Round((y - s.LayerPeakY) / s.LayerSpacing)
	center := s.LayerPeakY + k*s.LayerSpacing
	d := y - center
	sigma := s.LayerSpacing / 4
	return s.LayerBonus * math.Exp(-(d*d)/(2*sigma*sigma))
}

// caves carves spaghetti tunnels and, if enabled, cheese chambers.
func (c *genContext) caves() {
	s := &c.req.Blend.Primary.Caves
	f := s.Frequency
	baseX := c.req.Coord.X * world.ChunkSizeX
	baseZ := c.req.Coord.Z * world.ChunkSizeZ

	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			surface := c.heights[z*world.ChunkSizeX+x]
			lo := maxInt(c.minY, s.MinY)
			hi := minInt(c.minY+world.SubChunkHeight-1, minInt(s.MaxY, surface+5))
			wx := float64(baseX + int64(x))
			wz := float64(baseZ + int64(z))
			for wy := lo; wy <= hi; wy++ {
				ly := wy - c.minY
				if c.block(x, ly, z) == world.BlockAir {
					continue
				}
				if c.block(x, ly, z) == world.BlockBedrock {
					continue
				}
				y := float64(wy)
				n1 := c.noise.Noise3D(wx*f, y*3*f, wz*f)
				n2 := c.noise.Noise3D(wx*f+1000, y*3*f+1000, wz*f+1000)
				density := n1*n1 + n2*n2 - layerBonus(s, y)
				if density < s.Threshold {
					c.setBlock(x, ly, z, world.BlockAir)
					continue
				}
				if s.CheeseEnabled {
					cf := s.CheeseFrequency
					cheese := c.noise.FractalNoise3D(wx*cf, y*cf*3, wz*cf, 2, 0.5, 1)
					if cheese > s.CheeseThreshold {
						c.setBlock(x, ly, z, world.BlockAir)
					}
				}
			}
		}
	}
}

// cliffIntensity samples the cliff noise for a column, 0 when below the
// threshold.
func (c *genContext) cliffIntensity(x, z int) float64 {
	s := &c.req.Blend.Primary.Cliff
	wx := float64(c.req.Coord.X*world.ChunkSizeX + int64(x))
	wz := float64(c.req.Coord.Z*world.ChunkSizeZ + int64(z))
	v := c.noise.Noise2D(wx*s.Frequency+5000, wz*s.Frequency+5000)
	if v <= s.Threshold {
		return 0
	}
	return (v - s.Threshold) / (1 - s.Threshold)
}

// effectiveHeight is terrain height plus cliff lift, for any local column
// including one past the chunk edge.
func (c *genContext) effectiveHeight(x, z int) int {
	h := c.terrainHeight(x, z)
	s := &c.req.Blend.Primary.Cliff
	if !s.Enabled {
		return h
	}
	if i := c.cliffIntensity(x, z); i > 0 {
		h += int(math.Floor(i * float64(s.MaxHeight)))
	}
	return h
}

// cliffs lifts terrain where the cliff noise fires and exposes the cliff
// block on faces standing at least two blocks proud of their neighbors.
func (c *genContext) cliffs() {
	s := &c.req.Blend.Primary.Cliff
	biome := c.req.Blend.Primary
	maxY := c.minY + world.SubChunkHeight - 1

	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			intensity := c.cliffIntensity(x, z)
			if intensity <= 0 {
				continue
			}
			base := c.heights[z*world.ChunkSizeX+x]
			lift := int(math.Floor(intensity * float64(s.MaxHeight)))
			if lift <= 0 {
				continue
			}
			h := base + lift
			c.heights[z*world.ChunkSizeX+x] = h
			if h > maxY {
				c.res.HasTerrainAbove = true
			}
			for wy := maxInt(base+1, c.minY); wy <= minInt(h, maxY); wy++ {
				c.setBlock(x, wy-c.minY, z, s.Block)
			}

			// Proud faces get the cliff block down to subsurface depth.
			proud := true
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				if c.effectiveHeight(x+d[0], z+d[1]) > h-2 {
					proud = false
					break
				}
			}
			if proud {
				for wy := maxInt(h-biome.SubsurfaceDepth, c.minY); wy <= minInt(h, maxY); wy++ {
					c.setBlock(x, wy-c.minY, z, s.Block)
				}
			}
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
