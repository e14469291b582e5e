package meshing

import (
	"math"

	"voxelstream/internal/world"
)

// Greedy meshing: for every face direction, build a 2D mask per slice
// encoding (texture, light, block) per visible face, merge equal runs into
// maximal rectangles, and emit one quad per rectangle.

// Mesher holds the shared lookup tables. One instance serves every worker.
type Mesher struct {
	tables *Tables
}

// NewMesher creates a mesher over the registry-derived tables.
func NewMesher(tables *Tables) *Mesher {
	return &Mesher{tables: tables}
}

var dims = [3]int{world.ChunkSizeX, world.SubChunkHeight, world.ChunkSizeZ}

// faceAxes fixes the slice axis (a) and the mask axes (u,v) per face so
// that the mask index uu*dims[v]+vv matches the boundary slab layout.
type faceAxes struct {
	a, u, v  int
	positive bool
}

func axesFor(f world.Face) faceAxes {
	switch f {
	case world.FaceEast:
		return faceAxes{a: 0, u: 1, v: 2, positive: true}
	case world.FaceWest:
		return faceAxes{a: 0, u: 1, v: 2, positive: false}
	case world.FaceTop:
		return faceAxes{a: 1, u: 2, v: 0, positive: true}
	case world.FaceBottom:
		return faceAxes{a: 1, u: 2, v: 0, positive: false}
	case world.FaceNorth:
		return faceAxes{a: 2, u: 1, v: 0, positive: true}
	default: // FaceSouth
		return faceAxes{a: 2, u: 1, v: 0, positive: false}
	}
}

// Mesh builds the quad groups for one job.
func (m *Mesher) Mesh(job *Job) *Result {
	res := &Result{
		Coord:  job.Coord,
		Blocks: job.Blocks,
		Light:  job.Light,
	}
	if len(job.Blocks) != world.SubChunkVolume || len(job.Light) != world.SubChunkVolume {
		return res
	}

	b := &builder{
		mesher: m,
		job:    job,
		res:    res,
		groups: make(map[groupKey]int),
	}
	for f := 0; f < world.FaceCount; f++ {
		b.meshDirection(world.Face(f))
	}
	b.collectNonGreedy()
	return res
}

type groupKey struct {
	tex         world.TextureID
	face        world.Face
	transparent bool
}

type builder struct {
	mesher *Mesher
	job    *Job
	res    *Result

	// groups maps a key to the index of its most recent (possibly full)
	// group in the opaque or transparent slice.
	groups map[groupKey]int
}

func (b *builder) blockAt(c [3]int) world.BlockID {
	i := world.LocalToIndex(c[0], c[1], c[2])
	if i < 0 {
		return world.BlockAir
	}
	return b.job.Blocks[i]
}

func (b *builder) lightAt(c [3]int) byte {
	i := world.LocalToIndex(c[0], c[1], c[2])
	if i < 0 {
		return 15
	}
	l := b.job.Light[i]
	sky := l >> 4
	blk := l & 0x0F
	if blk > sky {
		return blk
	}
	return sky
}

// neighborSample resolves the cell on the far side of a face: in-chunk
// cells read the local arrays, out-of-chunk cells read the boundary slab.
// Missing slabs read as air under open sky (dark when looking down).
func (b *builder) neighborSample(face world.Face, ax faceAxes, layer, uu, vv int) (world.BlockID, byte) {
	var c [3]int
	c[ax.a] = layer
	if ax.positive {
		c[ax.a]++
	} else {
		c[ax.a]--
	}
	c[ax.u] = uu
	c[ax.v] = vv

	if c[ax.a] >= 0 && c[ax.a] < dims[ax.a] {
		return b.blockAt(c), b.lightAt(c)
	}

	slabIdx := uu*dims[ax.v] + vv
	if blocks := b.job.Neighbors.Blocks[face]; blocks != nil {
		id := blocks[slabIdx]
		var lv byte
		if light := b.job.Neighbors.Light[face]; light != nil {
			lv = light[slabIdx]
		}
		return id, lv
	}
	if face == world.FaceBottom {
		return world.BlockAir, 0
	}
	return world.BlockAir, 15
}

func (b *builder) meshDirection(face world.Face) {
	ax := axesFor(face)
	usize := dims[ax.u]
	vsize := dims[ax.v]
	mask := make([]int64, usize*vsize)
	t := b.mesher.tables

	for layer := 0; layer < dims[ax.a]; layer++ {
		// Build the visibility mask for this slice.
		any := false
		for uu := 0; uu < usize; uu++ {
			for vv := 0; vv < vsize; vv++ {
				mi := uu*vsize + vv
				mask[mi] = 0

				var c [3]int
				c[ax.a] = layer
				c[ax.u] = uu
				c[ax.v] = vv
				id := b.blockAt(c)
				if id == world.BlockAir || t.isNonGreedy(id) {
					continue
				}
				nb, nl := b.neighborSample(face, ax, layer, uu, vv)
				if t.hideFace(id, nb) {
					continue
				}
				tex := t.textureFor(id, face)
				mask[mi] = (int64(tex)<<24 | int64(nl)<<20 | int64(id)) + 1
				any = true
			}
		}
		if !any {
			continue
		}

		// Greedy merge: widen along v, then grow full-width rows along u.
		for i := 0; i < usize*vsize; {
			if mask[i] == 0 {
				i++
				continue
			}
			val := mask[i]
			u0 := i / vsize
			v0 := i % vsize

			w := 1
			for v1 := v0 + 1; v1 < vsize && mask[u0*vsize+v1] == val; v1++ {
				w++
			}
			h := 1
		grow:
			for u1 := u0 + 1; u1 < usize; u1++ {
				for v1 := v0; v1 < v0+w; v1++ {
					if mask[u1*vsize+v1] != val {
						break grow
					}
				}
				h++
			}

			enc := val - 1
			tex := world.TextureID(enc >> 24)
			light := byte((enc >> 20) & 0x0F)
			id := world.BlockID(enc & 0xFFFF)
			b.emitQuad(face, ax, layer, u0, v0, w, h, tex, light, t.isTransparent(id))

			for u1 := u0; u1 < u0+h; u1++ {
				for v1 := v0; v1 < v0+w; v1++ {
					mask[u1*vsize+v1] = 0
				}
			}
			i += w
		}
	}
}

// faceBrightness maps a 0-15 light level to the vertex color channel.
func faceBrightness(light byte) float32 {
	n := float64(light) / 15.0
	return float32(0.02 + math.Pow(n, 2.2)*0.98)
}

func (b *builder) emitQuad(face world.Face, ax faceAxes, layer, u0, v0, w, h int, tex world.TextureID, light byte, transparent bool) {
	g := b.groupFor(groupKey{tex: tex, face: face, transparent: transparent})

	plane := layer
	if ax.positive {
		plane++
	}

	// Corner offsets in (u,v): height h runs along u, width w along v.
	corners := [4][2]int{{0, 0}, {h, 0}, {h, w}, {0, w}}
	uvs := [4][2]float32{{0, 0}, {0, float32(h)}, {float32(w), float32(h)}, {float32(w), 0}}

	// CCW seen from outside; Z faces wind opposite the X/Y pattern.
	order := [4]int{0, 1, 2, 3}
	reverse := !ax.positive
	if ax.a == 2 {
		reverse = !reverse
	}
	if reverse {
		order = [4]int{0, 3, 2, 1}
	}

	var normal [3]float32
	if ax.positive {
		normal[ax.a] = 1
	} else {
		normal[ax.a] = -1
	}

	bright := faceBrightness(light)
	base := uint16(len(g.Vertices) / VertexStride)

	for _, ci := range order {
		var c [3]int
		c[ax.a] = plane
		c[ax.u] = u0 + corners[ci][0]
		c[ax.v] = v0 + corners[ci][1]

		wx := float32(b.job.Coord.X*world.ChunkSizeX) + float32(c[0])
		wy := float32(b.job.Coord.MinWorldY()) + float32(c[1])
		wz := float32(b.job.Coord.Z*world.ChunkSizeZ) + float32(c[2])

		g.Vertices = append(g.Vertices,
			wx, wy, wz,
			uvs[ci][0], uvs[ci][1],
			normal[0], normal[1], normal[2],
			bright, bright, bright,
		)
	}
	g.Indices = append(g.Indices, base, base+1, base+2, base+2, base+3, base)
}

// groupFor returns the open group for a key, rolling into a fresh group
// when the current one would overflow its 16-bit index space.
func (b *builder) groupFor(key groupKey) *MeshGroup {
	list := &b.res.Opaque
	if key.transparent {
		list = &b.res.Transparent
	}
	if gi, ok := b.groups[key]; ok {
		g := &(*list)[gi]
		if len(g.Vertices)/VertexStride+4 <= maxGroupVertices {
			return g
		}
	}
	*list = append(*list, MeshGroup{Texture: key.tex, Face: key.face, Transparent: key.transparent})
	b.groups[key] = len(*list) - 1
	return &(*list)[len(*list)-1]
}

// collectNonGreedy gathers custom-geometry block instances with the max
// light of their six neighbor cells.
func (b *builder) collectNonGreedy() {
	t := b.mesher.tables
	byBlock := make(map[world.BlockID]*NonGreedyGroup)

	for y := 0; y < world.SubChunkHeight; y++ {
		for z := 0; z < world.ChunkSizeZ; z++ {
			for x := 0; x < world.ChunkSizeX; x++ {
				id := b.job.Blocks[world.LocalToIndex(x, y, z)]
				if id == world.BlockAir || !t.isNonGreedy(id) {
					continue
				}
				best := byte(0)
				for f := 0; f < world.FaceCount; f++ {
					face := world.Face(f)
					ax := axesFor(face)
					var c [3]int
					c[0], c[1], c[2] = x, y, z
					_, nl := b.neighborSample(face, ax, c[ax.a], c[ax.u], c[ax.v])
					if nl > best {
						best = nl
					}
				}
				g := byBlock[id]
				if g == nil {
					g = &NonGreedyGroup{Block: id}
					byBlock[id] = g
				}
				g.Positions = append(g.Positions,
					float32(b.job.Coord.X*world.ChunkSizeX)+float32(x),
					float32(b.job.Coord.MinWorldY())+float32(y),
					float32(b.job.Coord.Z*world.ChunkSizeZ)+float32(z),
				)
				g.Lights = append(g.Lights, best)
			}
		}
	}
	for _, g := range byBlock {
		b.res.NonGreedy = append(b.res.NonGreedy, *g)
	}
}
