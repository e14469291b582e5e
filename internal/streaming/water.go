package streaming

import (
	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
	"voxelstream/internal/worldgen"
)

// Cross-chunk water: a worker only sees its own chunk, so water reaching a
// chunk edge is finished on the main task by re-flooding the neighbor from
// actual block data. Spread never turns back toward the edge it came from.

// edgeOffset maps a worldgen edge index to the chunk delta it points at.
func edgeOffset(edge int) (int64, int64) {
	switch edge {
	case worldgen.EdgePosX:
		return 1, 0
	case worldgen.EdgeNegX:
		return -1, 0
	case worldgen.EdgePosZ:
		return 0, 1
	default:
		return 0, -1
	}
}

func oppositeEdge(edge int) int {
	switch edge {
	case worldgen.EdgePosX:
		return worldgen.EdgeNegX
	case worldgen.EdgeNegX:
		return worldgen.EdgePosX
	case worldgen.EdgePosZ:
		return worldgen.EdgeNegZ
	default:
		return worldgen.EdgePosZ
	}
}

// SetLiquidTest injects the liquid predicate used by water reprocessing
// (built from the registry by the engine).
func (s *GenerationScheduler) SetLiquidTest(fn func(world.BlockID) bool) {
	s.isLiquid = fn
}

// SetWaterCallback registers the hook run after a reprocess pass changed
// a sub-chunk.
func (s *GenerationScheduler) SetWaterCallback(fn func(coord world.SubChunkCoord, sub *world.SubChunk)) {
	s.onWaterReflooded = fn
}

// handleWaterEdges queues the neighbors a worker's flood touched.
func (s *GenerationScheduler) handleWaterEdges(coord world.SubChunkCoord, edges worldgen.WaterEdgeEffects) {
	if !edges.Any() {
		return
	}
	for edge := 0; edge < worldgen.EdgeCount; edge++ {
		if !edges[edge] {
			continue
		}
		dx, dz := edgeOffset(edge)
		n := world.SubChunkCoord{X: coord.X + dx, Z: coord.Z + dz, SubY: coord.SubY}
		if !s.generated[n] {
			continue // will flood itself when it generates
		}
		s.queueReprocess(n, oppositeEdge(edge))
	}
}

// inspectNeighborsForWater re-floods a freshly applied sub-chunk when an
// already-generated neighbor holds water on the shared edge.
func (s *GenerationScheduler) inspectNeighborsForWater(coord world.SubChunkCoord) {
	if s.isLiquid == nil {
		return
	}
	for edge := 0; edge < worldgen.EdgeCount; edge++ {
		dx, dz := edgeOffset(edge)
		n := world.SubChunkCoord{X: coord.X + dx, Z: coord.Z + dz, SubY: coord.SubY}
		if !s.generated[n] {
			continue
		}
		nSub := s.mgr.SubChunkAt(n)
		if nSub == nil {
			continue
		}
		if s.edgeHasLiquid(nSub, oppositeEdge(edge)) {
			s.queueReprocess(coord, edge)
		}
	}
}

// edgeHasLiquid scans the facing edge plane of a sub-chunk for liquid.
func (s *GenerationScheduler) edgeHasLiquid(sub *world.SubChunk, edge int) bool {
	for y := 0; y < world.SubChunkHeight; y++ {
		for t := 0; t < world.ChunkSizeZ; t++ {
			x, z := edgeCell(edge, t)
			if s.isLiquid(sub.GetBlock(x, y, z)) {
				return true
			}
		}
	}
	return false
}

// edgeCell returns the local cell on an edge for running coordinate t.
func edgeCell(edge, t int) (int, int) {
	switch edge {
	case worldgen.EdgePosX:
		return world.ChunkSizeX - 1, t
	case worldgen.EdgeNegX:
		return 0, t
	case worldgen.EdgePosZ:
		return t, world.ChunkSizeZ - 1
	default:
		return t, 0
	}
}

func (s *GenerationScheduler) queueReprocess(coord world.SubChunkCoord, sourceEdge int) {
	if s.reprocessSet[coord] {
		return
	}
	s.reprocessSet[coord] = true
	s.reprocess = append(s.reprocess, waterReprocess{coord: coord, sourceEdge: sourceEdge})
}

// ReprocessWater drains up to maxPerTick queued re-floods.
func (s *GenerationScheduler) ReprocessWater(maxPerTick int) bool {
	defer profiling.Track("streaming.WaterReprocess")()
	n := 0
	for n < maxPerTick && len(s.reprocess) > 0 {
		entry := s.reprocess[0]
		s.reprocess = s.reprocess[1:]
		delete(s.reprocessSet, entry.coord)
		s.refloodFromEdge(entry.coord, entry.sourceEdge)
		n++
	}
	return len(s.reprocess) > 0
}

// refloodFromEdge reads the neighbor's edge water and spreads it into the
// target sub-chunk through air at or below the water level. Biome
// blending is not reproducible here, so the pass works from actual
// blocks only.
func (s *GenerationScheduler) refloodFromEdge(coord world.SubChunkCoord, sourceEdge int) {
	if s.isLiquid == nil {
		return
	}
	sub := s.mgr.SubChunkAt(coord)
	if sub == nil {
		return
	}
	dx, dz := edgeOffset(sourceEdge)
	source := s.mgr.SubChunkAt(world.SubChunkCoord{X: coord.X + dx, Z: coord.Z + dz, SubY: coord.SubY})
	if source == nil {
		return
	}

	level, liquid, ok := s.waterParamsFor(coord)
	if !ok {
		if level, liquid, ok = s.waterParamsFor(world.SubChunkCoord{X: coord.X + dx, Z: coord.Z + dz, SubY: coord.SubY}); !ok {
			return
		}
	}
	minY := coord.MinWorldY()
	localLevel := level - minY
	if localLevel < 0 {
		return
	}
	if localLevel >= world.SubChunkHeight {
		localLevel = world.SubChunkHeight - 1
	}

	// Seed from target edge cells whose neighbor cell carries water.
	type cell struct{ x, y, z int }
	var queue []cell
	seen := make(map[cell]bool)
	for y := 0; y <= localLevel; y++ {
		for t := 0; t < world.ChunkSizeZ; t++ {
			tx, tz := edgeCell(sourceEdge, t)
			sx, sz := edgeCell(oppositeEdge(sourceEdge), t)
			if !s.isLiquid(source.GetBlock(sx, y, sz)) {
				continue
			}
			if sub.GetBlock(tx, y, tz) != world.BlockAir {
				continue
			}
			c := cell{tx, y, tz}
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}

	var newEdges worldgen.WaterEdgeEffects
	changed := false
	for qi := 0; qi < len(queue); qi++ {
		c := queue[qi]
		if sub.GetBlock(c.x, c.y, c.z) != world.BlockAir {
			continue
		}
		sub.SetBlock(c.x, c.y, c.z, liquid)
		changed = true
		if c.x == 0 {
			newEdges[worldgen.EdgeNegX] = true
		}
		if c.x == world.ChunkSizeX-1 {
			newEdges[worldgen.EdgePosX] = true
		}
		if c.z == 0 {
			newEdges[worldgen.EdgeNegZ] = true
		}
		if c.z == world.ChunkSizeZ-1 {
			newEdges[worldgen.EdgePosZ] = true
		}
		// Spread sideways and down, never up.
		for _, d := range [5][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}} {
			n := cell{c.x + d[0], c.y + d[1], c.z + d[2]}
			if n.y < 0 || n.y > localLevel {
				continue
			}
			if world.LocalToIndex(n.x, n.y, n.z) < 0 || seen[n] {
				continue
			}
			if sub.GetBlock(n.x, n.y, n.z) != world.BlockAir {
				continue
			}
			seen[n] = true
			queue = append(queue, n)
		}
	}
	if !changed {
		return
	}

	// Propagate along newly touched edges only, never back at the source.
	newEdges[sourceEdge] = false
	for edge := 0; edge < worldgen.EdgeCount; edge++ {
		if !newEdges[edge] {
			continue
		}
		ddx, ddz := edgeOffset(edge)
		n := world.SubChunkCoord{X: coord.X + ddx, Z: coord.Z + ddz, SubY: coord.SubY}
		if s.generated[n] {
			s.queueReprocess(n, oppositeEdge(edge))
		}
	}
	if s.onWaterReflooded != nil {
		s.onWaterReflooded(coord, sub)
	}
}

// waterParamsFor resolves the water level and liquid block of a chunk's
// primary biome.
func (s *GenerationScheduler) waterParamsFor(coord world.SubChunkCoord) (int, world.BlockID, bool) {
	blend := s.biomes.BlendFor(coord.X, coord.Z)
	if blend.Primary == nil || !blend.Primary.Water.Enabled {
		return 0, 0, false
	}
	return blend.Primary.Water.Level, blend.Primary.Water.Liquid, true
}
