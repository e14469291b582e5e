package worldgen

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

const (
	saltOreBase  = 0x04E
	saltOreBlob  = 0x0B10B
	saltTreeCell = 0x74EE
	saltWater    = 0x3A7E4
)

// ores runs every configured ore feature: deterministic attempt positions,
// Box-Muller Y bias toward the peak, then a bounded BFS blob replacing
// only the listed host blocks.
func (c *genContext) ores() {
	for oi := range c.req.Blend.Primary.Ores {
		c.oreFeature(&c.req.Blend.Primary.Ores[oi])
	}
}

func (c *genContext) oreFeature(s *OreSettings) {
	if s.VeinSize <= 0 || s.Frequency <= 0 {
		return
	}
	cx := c.req.Coord.X
	cz := c.req.Coord.Z
	maxY := c.minY + world.SubChunkHeight - 1

	for attempt := 0; attempt < s.Frequency; attempt++ {
		salt := s.Salt + saltOreBase + int64(attempt)*1009
		rx := world.PositionRandom(c.req.Seed, cx, cz, salt)
		rz := world.PositionRandom(c.req.Seed, cx, cz, salt+1)
		gauss := world.PositionRandomGaussian(c.req.Seed, cx, cz, salt+2)

		lx := int(rx * world.ChunkSizeX)
		lz := int(rz * world.ChunkSizeZ)
		wy := int(math.Round(s.PeakY + gauss*s.YSpread))
		if wy < s.MinY {
			wy = s.MinY
		}
		if wy > s.MaxY {
			wy = s.MaxY
		}
		if wy < c.minY || wy > maxY {
			continue
		}
		c.oreBlob(s, lx, wy-c.minY, lz, salt)
	}
}

// oreBlob grows a vein from a start cell. Neighbor acceptance probability
// decays as the vein fills so veins taper instead of forming cubes.
func (c *genContext) oreBlob(s *OreSettings, sx, sy, sz int, salt int64) {
	type cell struct{ x, y, z int }
	queue := []cell{{sx, sy, sz}}
	visited := map[cell]bool{{sx, sy, sz}: true}
	placed := 0

	// Monotonic index instead of pop-front keeps the queue allocation flat.
	for qi := 0; qi < len(queue) && placed < s.VeinSize; qi++ {
		cur := queue[qi]
		if !c.replaceable(s, cur.x, cur.y, cur.z) {
			continue
		}
		c.setBlock(cur.x, cur.y, cur.z, s.Block)
		placed++
		c.res.OrePositions = append(c.res.OrePositions, OrePosition{
			Block: s.Block,
			Pos: mgl32.Vec3{
				float32(c.req.Coord.X*world.ChunkSizeX + int64(cur.x)),
				float32(c.minY + cur.y),
				float32(c.req.Coord.Z*world.ChunkSizeZ + int64(cur.z)),
			},
		})

		accept := 0.7 - 0.3*(float64(placed)/float64(s.VeinSize))
		for fi, d := range world.FaceOffsets {
			n := cell{cur.x + d[0], cur.y + d[1], cur.z + d[2]}
			if visited[n] {
				continue
			}
			if world.LocalToIndex(n.x, n.y, n.z) < 0 {
				continue
			}
			r := world.PositionRandom(c.req.Seed,
				int64(n.x)*31+int64(n.y), int64(n.z)*31+int64(fi), salt+saltOreBlob)
			if r >= accept {
				continue
			}
			visited[n] = true
			queue = append(queue, n)
		}
	}
}

func (c *genContext) replaceable(s *OreSettings, x, y, z int) bool {
	b := c.block(x, y, z)
	for _, id := range s.Replaceable {
		if b == id {
			return true
		}
	}
	return false
}

// waterRegionActive samples the low-frequency water region noise for this
// chunk.
func (c *genContext) waterRegionActive(s *WaterSettings) bool {
	wx := float64(c.req.Coord.X*world.ChunkSizeX + world.ChunkSizeX/2)
	wz := float64(c.req.Coord.Z*world.ChunkSizeZ + world.ChunkSizeZ/2)
	v := c.noise.Noise2D(wx*s.RegionFrequency+9000, wz*s.RegionFrequency+9000)
	return v > s.RegionThreshold
}

// water floods columns whose terrain sits below the water level inside an
// active water region, and records which chunk edges the water touches.
func (c *genContext) water() {
	s := &c.req.Blend.Primary.Water
	if !c.waterRegionActive(s) {
		return
	}
	maxY := c.minY + world.SubChunkHeight - 1

	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			h := c.heights[z*world.ChunkSizeX+x]
			if h >= s.Level {
				continue
			}
			if s.Level-h < s.MinDepth {
				continue
			}
			lo := maxInt(h+1, c.minY)
			hi := minInt(s.Level, maxY)
			filled := false
			for wy := lo; wy <= hi; wy++ {
				ly := wy - c.minY
				if c.block(x, ly, z) != world.BlockAir {
					continue
				}
				c.setBlock(x, ly, z, s.Liquid)
				filled = true
			}
			if !filled {
				continue
			}
			if x == 0 {
				c.res.WaterEdges[EdgeNegX] = true
			}
			if x == world.ChunkSizeX-1 {
				c.res.WaterEdges[EdgePosX] = true
			}
			if z == 0 {
				c.res.WaterEdges[EdgeNegZ] = true
			}
			if z == world.ChunkSizeZ-1 {
				c.res.WaterEdges[EdgePosZ] = true
			}
		}
	}
}

// skylight writes the provisional per-column skylight: 15 for open air
// above the terrain surface, 0 below it and inside blocks. Boundary and
// cave corrections arrive later from the lighting pass.
func (c *genContext) skylight() {
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			h := c.heights[z*world.ChunkSizeX+x]
			for ly := world.SubChunkHeight - 1; ly >= 0; ly-- {
				i := world.LocalToIndex(x, ly, z)
				wy := c.minY + ly
				var sky byte
				if c.req.Blocks[i] == world.BlockAir && wy > h {
					sky = 15
				}
				c.req.Light[i] = sky << 4
			}
		}
	}
}

// trees picks seed positions on a jittered 8x8 grid. Only columns whose
// surface lies inside this sub-chunk emit a seed, so each tree is reported
// exactly once.
func (c *genContext) trees() {
	s := &c.req.Blend.Primary.Trees
	if s.Density <= 0 {
		return
	}
	const gridCells = 8
	const cellSize = world.ChunkSizeX / gridCells
	accept := s.Density / 64.0
	maxY := c.minY + world.SubChunkHeight - 1

	for gz := 0; gz < gridCells; gz++ {
		for gx := 0; gx < gridCells; gx++ {
			cellWX := c.req.Coord.X*gridCells + int64(gx)
			cellWZ := c.req.Coord.Z*gridCells + int64(gz)
			if world.PositionRandom(c.req.Seed, cellWX, cellWZ, saltTreeCell) >= accept {
				continue
			}
			jx := int(world.PositionRandom(c.req.Seed, cellWX, cellWZ, saltTreeCell+1) * cellSize)
			jz := int(world.PositionRandom(c.req.Seed, cellWX, cellWZ, saltTreeCell+2) * cellSize)
			lx := gx*cellSize + jx
			lz := gz*cellSize + jz

			h := c.heights[lz*world.ChunkSizeX+lx]
			if h < c.minY || h > maxY {
				continue
			}
			// No trees on carved or flooded columns.
			surface := c.block(lx, h-c.minY, lz)
			if surface == world.BlockAir || surface == c.req.Blend.Primary.Water.Liquid {
				continue
			}
			trunk := s.TrunkMin
			if s.TrunkMax > s.TrunkMin {
				trunk += int(world.PositionRandom(c.req.Seed, cellWX, cellWZ, saltTreeCell+3) *
					float64(s.TrunkMax-s.TrunkMin+1))
			}
			c.res.TreeSeeds = append(c.res.TreeSeeds, TreeSeed{
				WorldX:      c.req.Coord.X*world.ChunkSizeX + int64(lx),
				WorldZ:      c.req.Coord.Z*world.ChunkSizeZ + int64(lz),
				BaseY:       h + 1,
				TrunkHeight: trunk,
				Wood:        s.Wood,
				Leaves:      s.Leaves,
			})
		}
	}
}

// summarize fills the result fields the schedulers read without touching
// the buffers again.
func (c *genContext) summarize() {
	maxSolid := -1
	fullyOpaque := true
	for i := world.SubChunkVolume - 1; i >= 0; i-- {
		id := c.req.Blocks[i]
		if id != world.BlockAir && maxSolid < 0 {
			_, y, _ := world.IndexToLocal(i)
			maxSolid = c.minY + y
		}
		if fullyOpaque && !c.gen.opaque.IsOpaque(id) {
			fullyOpaque = false
			if maxSolid >= 0 {
				break
			}
		}
	}
	c.res.MaxSolidY = maxSolid
	c.res.FullyOpaque = fullyOpaque
}
