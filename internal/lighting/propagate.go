package lighting

import "voxelstream/internal/world"

// Skylight propagation runs on a doubled 0-30 internal scale: light loses
// one internal unit per cell traversed plus twice the block's attenuation,
// while the stored nibble is internal/2. Horizontal reach into caves is
// therefore roughly double what naive 0-15 stepping would give.

const maxInternal = 30

// BoundaryLight is one horizontal skylight slice of a sub-chunk, used to
// carry light across the vertical sub-chunk seam.
type BoundaryLight [world.LayerSize]byte

// Dir identifies a horizontal neighbor direction for boundary transfer.
type Dir int

const (
	DirPosX Dir = iota
	DirNegX
	DirPosZ
	DirNegZ
)

// Offset returns the chunk-coordinate delta of the direction.
func (d Dir) Offset() (int64, int64) {
	switch d {
	case DirPosX:
		return 1, 0
	case DirNegX:
		return -1, 0
	case DirPosZ:
		return 0, 1
	default:
		return 0, -1
	}
}

// Opposite returns the reverse direction.
func (d Dir) Opposite() Dir {
	switch d {
	case DirPosX:
		return DirNegX
	case DirNegX:
		return DirPosX
	case DirPosZ:
		return DirNegZ
	default:
		return DirPosZ
	}
}

// Propagator computes skylight for sub-chunk volumes. It holds only the
// per-id attenuation table, so one instance is shared freely.
type Propagator struct {
	blocking []byte
}

// NewPropagator creates a propagator over the registry's attenuation table.
func NewPropagator(blocking []byte) *Propagator {
	return &Propagator{blocking: blocking}
}

func (p *Propagator) blockingOf(id world.BlockID) byte {
	if int(id) >= len(p.blocking) {
		return 0
	}
	return p.blocking[id]
}

func skyAt(light []byte, i int) byte { return light[i] >> 4 }

func setSky(light []byte, i int, v byte) { light[i] = (light[i] & 0x0F) | (v << 4) }

type queueEntry struct {
	idx int32
	lvl int16 // internal 0-30
}

// PropagateSubChunk recomputes a sub-chunk's skylight from scratch: a
// per-column top-down init seeded from the boundary above (nil means open
// sky), then a six-neighbor flood to fill sideways reach.
func (p *Propagator) PropagateSubChunk(blocks []world.BlockID, light []byte, above *BoundaryLight) {
	p.columnInit(blocks, light, above)
	p.floodSeedAll(blocks, light)
}

// columnInit walks every column top to bottom carrying the internal level.
func (p *Propagator) columnInit(blocks []world.BlockID, light []byte, above *BoundaryLight) {
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			sky := int16(maxInternal)
			if above != nil {
				sky = int16(above[z*world.ChunkSizeX+x]) * 2
			}
			for y := world.SubChunkHeight - 1; y >= 0; y-- {
				i := world.LocalToIndex(x, y, z)
				id := blocks[i]
				if id == world.BlockAir {
					setSky(light, i, byte(sky/2))
					continue
				}
				b := p.blockingOf(id)
				sky -= int16(b) * 2
				if sky < 0 {
					sky = 0
				}
				setSky(light, i, byte(sky/2))
				if b >= 15 {
					for yy := y - 1; yy >= 0; yy-- {
						setSky(light, world.LocalToIndex(x, yy, z), 0)
					}
					break
				}
			}
		}
	}
}

// floodSeedAll seeds the flood with every lit cell that has a dimmer
// in-sub-chunk neighbor, then runs the BFS.
func (p *Propagator) floodSeedAll(blocks []world.BlockID, light []byte) {
	var queue []queueEntry
	for y := 0; y < world.SubChunkHeight; y++ {
		for z := 0; z < world.ChunkSizeZ; z++ {
			for x := 0; x < world.ChunkSizeX; x++ {
				i := world.LocalToIndex(x, y, z)
				s := skyAt(light, i)
				if s == 0 {
					continue
				}
				if p.hasDimmerNeighbor(light, x, y, z, s) {
					queue = append(queue, queueEntry{idx: int32(i), lvl: int16(s) * 2})
				}
			}
		}
	}
	p.flood(blocks, light, queue)
}

func (p *Propagator) hasDimmerNeighbor(light []byte, x, y, z int, s byte) bool {
	for _, d := range world.FaceOffsets {
		ni := world.LocalToIndex(x+d[0], y+d[1], z+d[2])
		if ni < 0 {
			continue
		}
		if skyAt(light, ni)+1 < s {
			return true
		}
	}
	return false
}

// flood runs the six-neighbor BFS over a contiguous queue with a monotonic
// read index.
func (p *Propagator) flood(blocks []world.BlockID, light []byte, queue []queueEntry) {
	for qi := 0; qi < len(queue); qi++ {
		e := queue[qi]
		if e.lvl <= 1 {
			continue
		}
		x, y, z := world.IndexToLocal(int(e.idx))
		for _, d := range world.FaceOffsets {
			ni := world.LocalToIndex(x+d[0], y+d[1], z+d[2])
			if ni < 0 {
				continue
			}
			next := e.lvl - 1 - int16(p.blockingOf(blocks[ni]))*2
			if next <= 0 {
				continue
			}
			if byte(next/2) > skyAt(light, ni) {
				setSky(light, ni, byte(next/2))
				queue = append(queue, queueEntry{idx: int32(ni), lvl: next})
			}
		}
	}
}

// BottomBoundary copies the y=0 skylight layer for handoff to the
// sub-chunk below.
func BottomBoundary(light []byte) *BoundaryLight {
	var b BoundaryLight
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			b[z*world.ChunkSizeX+x] = skyAt(light, world.LocalToIndex(x, 0, z))
		}
	}
	return &b
}

// TopBoundary copies the top skylight layer (used when propagating upward
// checks need the lower sub-chunk's ceiling).
func TopBoundary(light []byte) *BoundaryLight {
	var b BoundaryLight
	top := world.SubChunkHeight - 1
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			b[z*world.ChunkSizeX+x] = skyAt(light, world.LocalToIndex(x, top, z))
		}
	}
	return &b
}

// PropagateFromAbove feeds a boundary into the sub-chunk's top layer and
// floods. Existing light is only raised, never lowered; full relights go
// through PropagateSubChunk. Returns whether any cell changed.
func (p *Propagator) PropagateFromAbove(blocks []world.BlockID, light []byte, above *BoundaryLight) bool {
	var queue []queueEntry
	top := world.SubChunkHeight - 1
	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			i := world.LocalToIndex(x, top, z)
			incoming := int16(above[z*world.ChunkSizeX+x]) * 2
			incoming -= int16(p.blockingOf(blocks[i])) * 2
			if incoming <= 0 {
				continue
			}
			if byte(incoming/2) > skyAt(light, i) {
				setSky(light, i, byte(incoming/2))
				queue = append(queue, queueEntry{idx: int32(i), lvl: incoming})
			}
		}
	}
	if len(queue) == 0 {
		return false
	}
	p.flood(blocks, light, queue)
	return true
}

// PropagateFromNeighbor transfers skylight across the shared vertical face
// from source into target, losing one stored unit over the seam, then
// floods target. dir is the direction from target toward source. Returns
// whether target changed.
func (p *Propagator) PropagateFromNeighbor(
	targetBlocks []world.BlockID, targetLight []byte,
	sourceLight []byte, dir Dir,
) bool {
	var queue []queueEntry

	// Face coordinates: target edge cell and the source cell it touches.
	for y := 0; y < world.SubChunkHeight; y++ {
		for t := 0; t < world.ChunkSizeZ; t++ {
			var tx, tz, sx, sz int
			switch dir {
			case DirPosX:
				tx, tz = world.ChunkSizeX-1, t
				sx, sz = 0, t
			case DirNegX:
				tx, tz = 0, t
				sx, sz = world.ChunkSizeX-1, t
			case DirPosZ:
				tx, tz = t, world.ChunkSizeZ-1
				sx, sz = t, 0
			default:
				tx, tz = t, 0
				sx, sz = t, world.ChunkSizeZ-1
			}
			si := world.LocalToIndex(sx, y, sz)
			ti := world.LocalToIndex(tx, y, tz)
			s := skyAt(sourceLight, si)
			if s <= 1 {
				continue
			}
			incoming := int16(s)*2 - 2 - int16(p.blockingOf(targetBlocks[ti]))*2
			if incoming <= 0 {
				continue
			}
			if byte(incoming/2) > skyAt(targetLight, ti) {
				setSky(targetLight, ti, byte(incoming/2))
				queue = append(queue, queueEntry{idx: int32(ti), lvl: incoming})
			}
		}
	}
	if len(queue) == 0 {
		return false
	}
	p.flood(targetBlocks, targetLight, queue)
	return true
}
