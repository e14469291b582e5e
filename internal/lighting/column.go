package lighting

import "voxelstream/internal/world"

// SubVolume is one sub-chunk's buffers as seen by the lighting code:
// either worker-owned copies or, on the main task's edge pass, the live
// arrays.
type SubVolume struct {
	SubY   int
	Blocks []world.BlockID
	Light  []byte
}

// ColumnView assembles the present sub-chunks of one column so lighting
// can address the full world-Y range. Missing slots read as transparent
// air under open sky.
type ColumnView struct {
	subs [world.SubChunkCount]*SubVolume
}

// NewColumnView builds a view from a sparse sub-volume list.
func NewColumnView(vols []*SubVolume) *ColumnView {
	v := &ColumnView{}
	for _, s := range vols {
		if s != nil && s.SubY >= 0 && s.SubY < world.SubChunkCount {
			v.subs[s.SubY] = s
		}
	}
	return v
}

// Sub returns the volume at subY, nil when absent.
func (v *ColumnView) Sub(subY int) *SubVolume {
	if subY < 0 || subY >= world.SubChunkCount {
		return nil
	}
	return v.subs[subY]
}

// BlockAt reads a block by local XZ and world Y.
func (v *ColumnView) BlockAt(lx, wy, lz int) world.BlockID {
	subY := world.SubYForWorldY(wy)
	if subY < 0 {
		return world.BlockAir
	}
	s := v.subs[subY]
	if s == nil {
		return world.BlockAir
	}
	i := world.LocalToIndex(lx, wy%world.SubChunkHeight, lz)
	if i < 0 {
		return world.BlockAir
	}
	return s.Blocks[i]
}

// SkyAt reads skylight by local XZ and world Y; missing volumes read 15.
func (v *ColumnView) SkyAt(lx, wy, lz int) byte {
	subY := world.SubYForWorldY(wy)
	if subY < 0 {
		return 15
	}
	s := v.subs[subY]
	if s == nil {
		return 15
	}
	i := world.LocalToIndex(lx, wy%world.SubChunkHeight, lz)
	if i < 0 {
		return 15
	}
	return skyAt(s.Light, i)
}

// SetSkyAt writes skylight by local XZ and world Y into a present volume.
func (v *ColumnView) SetSkyAt(lx, wy, lz int, level byte) bool {
	subY := world.SubYForWorldY(wy)
	if subY < 0 {
		return false
	}
	s := v.subs[subY]
	if s == nil {
		return false
	}
	i := world.LocalToIndex(lx, wy%world.SubChunkHeight, lz)
	if i < 0 {
		return false
	}
	if skyAt(s.Light, i) == level {
		return false
	}
	setSky(s.Light, i, level)
	return true
}

// CheckSkyAccess reports whether no light-opaque block sits at or above
// (lx,wy,lz) in the column. Missing sub-chunks count as transparent.
func (p *Propagator) CheckSkyAccess(v *ColumnView, lx, wy, lz int) bool {
	for y := wy; y < world.WorldHeight; y++ {
		if p.blockingOf(v.BlockAt(lx, y, lz)) >= 15 {
			return false
		}
	}
	return true
}

// RecalculateColumn relights every present sub-chunk. Sub-chunks are
// visited top-down with each bottom boundary feeding the next; a second
// top-down pass follows so sideways reach gained in the flood (which can
// raise a sub-chunk's bottom boundary) also lights what sits below it.
func (p *Propagator) RecalculateColumn(v *ColumnView) {
	for pass := 0; pass < 2; pass++ {
		var above *BoundaryLight
		for subY := world.SubChunkCount - 1; subY >= 0; subY-- {
			s := v.subs[subY]
			if s == nil {
				// A gap reads as open air: whatever light reached the gap
				// keeps falling unattenuated, so the boundary carries over.
				continue
			}
			p.PropagateSubChunk(s.Blocks, s.Light, above)
			above = BottomBoundary(s.Light)
		}
	}
}

// UpdateLightingAt repairs skylight after one block edit at column-local
// (lx, wy, lz). Returns the subY indices whose light changed. Only the
// edited cell's column view is touched; horizontally adjacent columns heal
// through the background edge-propagation pass.
func (p *Propagator) UpdateLightingAt(v *ColumnView, lx, wy, lz int, blockRemoved bool) []int {
	subY := world.SubYForWorldY(wy)
	if subY < 0 || v.subs[subY] == nil {
		return nil
	}
	changed := make(map[int]bool)

	if blockRemoved {
		p.repairRemoval(v, lx, wy, lz, changed)
	} else {
		p.repairPlacement(v, lx, wy, lz, changed)
	}

	out := make([]int, 0, len(changed))
	for s := range changed {
		out = append(out, s)
	}
	return out
}

// repairRemoval relights the cell a removed block exposed and floods the
// gain through its sub-chunk.
func (p *Propagator) repairRemoval(v *ColumnView, lx, wy, lz int, changed map[int]bool) {
	subY := wy / world.SubChunkHeight
	s := v.subs[subY]

	var incoming int16
	if p.CheckSkyAccess(v, lx, wy+1, lz) {
		incoming = maxInternal
	} else {
		best := byte(0)
		for _, d := range world.FaceOffsets {
			n := v.SkyAt(lx+d[0], wy+d[1], lz+d[2])
			if n > best {
				best = n
			}
		}
		if best == 0 {
			incoming = 0
		} else {
			incoming = int16(best)*2 - 2
		}
	}
	if incoming < 0 {
		incoming = 0
	}

	i := world.LocalToIndex(lx, wy%world.SubChunkHeight, lz)
	if byte(incoming/2) != skyAt(s.Light, i) {
		setSky(s.Light, i, byte(incoming/2))
		changed[subY] = true
	}
	if incoming > 1 {
		p.flood(s.Blocks, s.Light, []queueEntry{{idx: int32(i), lvl: incoming}})
		changed[subY] = true
	}

	// Fresh sky access pours straight down through any air below.
	if incoming == maxInternal {
		for y := wy - 1; y >= 0; y-- {
			if v.BlockAt(lx, y, lz) != world.BlockAir {
				break
			}
			if v.SetSkyAt(lx, y, lz, 15) {
				sy := y / world.SubChunkHeight
				changed[sy] = true
				if sub := v.subs[sy]; sub != nil {
					ii := world.LocalToIndex(lx, y%world.SubChunkHeight, lz)
					p.flood(sub.Blocks, sub.Light, []queueEntry{{idx: int32(ii), lvl: maxInternal}})
				}
			}
		}
	}
}

// repairPlacement darkens under a placed opaque block and relights the
// shadowed cells from their horizontal neighbors.
func (p *Propagator) repairPlacement(v *ColumnView, lx, wy, lz int, changed map[int]bool) {
	subY := wy / world.SubChunkHeight
	s := v.subs[subY]
	i := world.LocalToIndex(lx, wy%world.SubChunkHeight, lz)
	id := v.BlockAt(lx, wy, lz)

	if p.blockingOf(id) < 15 {
		// Partial blockers just attenuate in place.
		reduced := int16(v.SkyAt(lx, wy+1, lz))*2 - int16(p.blockingOf(id))*2
		if reduced < 0 {
			reduced = 0
		}
		if byte(reduced/2) != skyAt(s.Light, i) {
			setSky(s.Light, i, byte(reduced/2))
			changed[subY] = true
		}
		return
	}

	if skyAt(s.Light, i) != 0 {
		setSky(s.Light, i, 0)
		changed[subY] = true
	}

	// Darkness column: zero all lit air below until the next blocker,
	// remembering which cells were shadowed.
	var shadowed [][3]int
	for y := wy - 1; y >= 0; y-- {
		b := v.BlockAt(lx, y, lz)
		if p.blockingOf(b) >= 15 {
			break
		}
		if v.SkyAt(lx, y, lz) == 0 {
			continue
		}
		if v.SetSkyAt(lx, y, lz, 0) {
			changed[y/world.SubChunkHeight] = true
			shadowed = append(shadowed, [3]int{lx, y, lz})
		}
	}

	// Relight shadowed cells sideways: max of the four horizontal
	// neighbors minus one stored unit.
	for _, c := range shadowed {
		best := byte(0)
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			n := v.SkyAt(c[0]+d[0], c[1], c[2]+d[1])
			if n > best {
				best = n
			}
		}
		if best <= 1 {
			continue
		}
		level := best - 1
		if v.SetSkyAt(c[0], c[1], c[2], level) {
			sy := c[1] / world.SubChunkHeight
			changed[sy] = true
			if sub := v.subs[sy]; sub != nil {
				ii := world.LocalToIndex(c[0], c[1]%world.SubChunkHeight, c[2])
				p.flood(sub.Blocks, sub.Light, []queueEntry{{idx: int32(ii), lvl: int16(level) * 2}})
			}
		}
	}
}
