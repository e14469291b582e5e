package world

// ChunkColumn groups the 16 sub-chunks sharing one 32x32 footprint. Reads
// on missing sub-chunks return air and full skylight; writes auto-create.
type ChunkColumn struct {
	Coord ChunkCoord
	subs  [SubChunkCount]*SubChunk
}

// NewChunkColumn creates an empty column at the given coordinate.
func NewChunkColumn(coord ChunkCoord) *ChunkColumn {
	return &ChunkColumn{Coord: coord}
}

// SubChunk returns the sub-chunk at subY, creating it if create is set.
// Returns nil for out-of-range subY.
func (c *ChunkColumn) SubChunk(subY int, create bool) *SubChunk {
	if subY < 0 || subY >= SubChunkCount {
		return nil
	}
	if c.subs[subY] == nil && create {
		c.subs[subY] = NewSubChunk(SubChunkCoord{X: c.Coord.X, Z: c.Coord.Z, SubY: subY})
	}
	return c.subs[subY]
}

// SetSubChunk installs a sub-chunk (used when applying loaded or generated
// data that arrives as a complete unit).
func (c *ChunkColumn) SetSubChunk(subY int, s *SubChunk) {
	if subY < 0 || subY >= SubChunkCount {
		return
	}
	c.subs[subY] = s
}

// RemoveSubChunk drops the sub-chunk at subY.
func (c *ChunkColumn) RemoveSubChunk(subY int) {
	if subY < 0 || subY >= SubChunkCount {
		return
	}
	c.subs[subY] = nil
}

// GetBlock reads a block by local XZ and world Y.
func (c *ChunkColumn) GetBlock(lx, wy, lz int) BlockID {
	subY := SubYForWorldY(wy)
	if subY < 0 {
		return BlockAir
	}
	s := c.subs[subY]
	if s == nil {
		return BlockAir
	}
	return s.GetBlock(lx, wy%SubChunkHeight, lz)
}

// SetBlock writes a block by local XZ and world Y, creating the sub-chunk
// if needed. Returns true iff the stored value changed.
func (c *ChunkColumn) SetBlock(lx, wy, lz int, id BlockID) bool {
	subY := SubYForWorldY(wy)
	if subY < 0 {
		return false
	}
	s := c.SubChunk(subY, true)
	return s.SetBlock(lx, wy%SubChunkHeight, lz, id)
}

// GetSkylight reads skylight by local XZ and world Y. Missing sub-chunks
// read as full sky.
func (c *ChunkColumn) GetSkylight(lx, wy, lz int) byte {
	subY := SubYForWorldY(wy)
	if subY < 0 {
		return 15
	}
	s := c.subs[subY]
	if s == nil {
		return 15
	}
	return s.GetSkylight(lx, wy%SubChunkHeight, lz)
}

// SetSkylight writes skylight by local XZ and world Y, creating the
// sub-chunk if needed.
func (c *ChunkColumn) SetSkylight(lx, wy, lz int, level byte) {
	subY := SubYForWorldY(wy)
	if subY < 0 {
		return
	}
	c.SubChunk(subY, true).SetSkylight(lx, wy%SubChunkHeight, lz, level)
}

// GetHighestBlockAt scans top-down for the first non-air block in the
// column at (lx,lz). Returns -1 when the column is empty there.
func (c *ChunkColumn) GetHighestBlockAt(lx, lz int) int {
	for subY := SubChunkCount - 1; subY >= 0; subY-- {
		s := c.subs[subY]
		if s == nil {
			continue
		}
		for y := SubChunkHeight - 1; y >= 0; y-- {
			if s.GetBlock(lx, y, lz) != BlockAir {
				return subY*SubChunkHeight + y
			}
		}
	}
	return -1
}

// GetGroundedHeightAt scans bottom-up and returns the height of the
// contiguous solid stack starting at y=0, stopping at the first air gap.
// ok is false when y=0 itself is air.
func (c *ChunkColumn) GetGroundedHeightAt(lx, lz int) (int, bool) {
	if c.GetBlock(lx, 0, lz) == BlockAir {
		return 0, false
	}
	h := 0
	for wy := 1; wy < WorldHeight; wy++ {
		if c.GetBlock(lx, wy, lz) == BlockAir {
			break
		}
		h = wy
	}
	return h, true
}

// EachSubChunk calls fn for every present sub-chunk, bottom to top.
func (c *ChunkColumn) EachSubChunk(fn func(subY int, s *SubChunk)) {
	for subY := 0; subY < SubChunkCount; subY++ {
		if c.subs[subY] != nil {
			fn(subY, c.subs[subY])
		}
	}
}

// HasAnySubChunk reports whether any sub-chunk is present.
func (c *ChunkColumn) HasAnySubChunk() bool {
	for _, s := range c.subs {
		if s != nil {
			return true
		}
	}
	return false
}
