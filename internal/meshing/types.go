package meshing

import "voxelstream/internal/world"

// VertexStride is the number of floats per vertex:
// x,y,z, u,v, nx,ny,nz, r,g,b.
const VertexStride = 11

// maxGroupVertices keeps indices inside uint16 range; a group rolls over
// into a sibling with the same key when full.
const maxGroupVertices = 65532

// MeshGroup is one draw batch: all merged quads sharing a texture, face
// direction, and transparency class.
type MeshGroup struct {
	Texture     world.TextureID
	Face        world.Face
	Transparent bool
	Vertices    []float32
	Indices     []uint16
}

// NonGreedyGroup carries custom-geometry block instances (torches etc.)
// for the renderer: world positions plus the max surrounding light per
// instance.
type NonGreedyGroup struct {
	Block     world.BlockID
	Positions []float32 // xyz triplets
	Lights    []byte
}

// BoundarySlabs are the six neighbor faces adjacent to the meshed
// sub-chunk. A nil slice means the neighbor sub-chunk is absent. Layouts:
// X slabs are indexed [y*32+z], Z slabs [y*32+x], Y slabs [z*32+x] -- in
// every case the plane of neighbor cells touching this sub-chunk.
type BoundarySlabs struct {
	Blocks [world.FaceCount][]world.BlockID
	Light  [world.FaceCount][]byte
}

// Tables is the static lookup data every meshing worker shares: built once
// from the registry and cached for the life of the pool.
type Tables struct {
	Opaque       world.OpacitySet
	FaceTextures []world.TextureID // blockID*6+face
	NonGreedy    []bool
	Transparent  []bool
}

// Job is one meshing request. Buffer ownership moves to the worker until
// the result returns.
type Job struct {
	Coord     world.SubChunkCoord
	Blocks    []world.BlockID
	Light     []byte
	Neighbors BoundarySlabs
}

// Result is the meshed output for one sub-chunk.
type Result struct {
	Coord world.SubChunkCoord

	Blocks []world.BlockID
	Light  []byte

	Opaque      []MeshGroup
	Transparent []MeshGroup
	NonGreedy   []NonGreedyGroup

	Err error
}

func (t *Tables) textureFor(id world.BlockID, face world.Face) world.TextureID {
	i := int(id)*world.FaceCount + int(face)
	if i >= len(t.FaceTextures) {
		return 0
	}
	return t.FaceTextures[i]
}

func (t *Tables) isNonGreedy(id world.BlockID) bool {
	return int(id) < len(t.NonGreedy) && t.NonGreedy[id]
}

func (t *Tables) isTransparent(id world.BlockID) bool {
	return int(id) < len(t.Transparent) && t.Transparent[id]
}

// hideFace mirrors the registry cull table: opaque neighbors hide the
// face, and identical non-opaque blocks cull their internal faces.
func (t *Tables) hideFace(block, neighbor world.BlockID) bool {
	if t.Opaque.IsOpaque(neighbor) {
		return true
	}
	return block == neighbor && block != world.BlockAir
}

// ExtractBoundary copies the face of a neighbor sub-chunk touching the
// meshed sub-chunk. face is the direction from the meshed sub-chunk toward
// the neighbor.
func ExtractBoundary(s *world.SubChunk, face world.Face) ([]world.BlockID, []byte) {
	switch face {
	case world.FaceEast, world.FaceWest:
		blocks := make([]world.BlockID, world.SubChunkHeight*world.ChunkSizeZ)
		light := make([]byte, world.SubChunkHeight*world.ChunkSizeZ)
		x := 0
		if face == world.FaceWest {
			x = world.ChunkSizeX - 1
		}
		for y := 0; y < world.SubChunkHeight; y++ {
			for z := 0; z < world.ChunkSizeZ; z++ {
				blocks[y*world.ChunkSizeZ+z] = s.GetBlock(x, y, z)
				light[y*world.ChunkSizeZ+z] = s.GetLightLevel(x, y, z)
			}
		}
		return blocks, light
	case world.FaceNorth, world.FaceSouth:
		blocks := make([]world.BlockID, world.SubChunkHeight*world.ChunkSizeX)
		light := make([]byte, world.SubChunkHeight*world.ChunkSizeX)
		z := 0
		if face == world.FaceSouth {
			z = world.ChunkSizeZ - 1
		}
		for y := 0; y < world.SubChunkHeight; y++ {
			for x := 0; x < world.ChunkSizeX; x++ {
				blocks[y*world.ChunkSizeX+x] = s.GetBlock(x, y, z)
				light[y*world.ChunkSizeX+x] = s.GetLightLevel(x, y, z)
			}
		}
		return blocks, light
	default:
		blocks := make([]world.BlockID, world.LayerSize)
		light := make([]byte, world.LayerSize)
		y := 0
		if face == world.FaceBottom {
			y = world.SubChunkHeight - 1
		}
		for z := 0; z < world.ChunkSizeZ; z++ {
			for x := 0; x < world.ChunkSizeX; x++ {
				blocks[z*world.ChunkSizeX+x] = s.GetBlock(x, y, z)
				light[z*world.ChunkSizeX+x] = s.GetLightLevel(x, y, z)
			}
		}
		return blocks, light
	}
}
