package registry

import "voxelstream/internal/world"

// BlockDefinition holds the static properties of one block type.
type BlockDefinition struct {
	ID   world.BlockID
	Name string

	IsOpaque bool
	IsSolid  bool
	IsLiquid bool

	// LightBlocking is how many light levels a traversal through this
	// block loses (0-15; 15 means fully opaque to light).
	LightBlocking byte
	// LightLevel is the blocklight this block emits (0-15).
	LightLevel byte

	Hardness float32
	Tags     []string

	TextureTop    string
	TextureSide   string
	TextureBottom string

	// NonGreedy blocks carry custom geometry (torches etc.) and are
	// skipped by the greedy mesher.
	NonGreedy bool
	// Transparent blocks mesh into the transparent group.
	Transparent bool
}

// Registry is the block property table, built at startup and passed into
// the engine. It is immutable after Finalize.
type Registry struct {
	byID   map[world.BlockID]*BlockDefinition
	byName map[string]world.BlockID

	textureNames []string
	textureMap   map[string]world.TextureID

	maxID world.BlockID

	// Precomputed tables, valid after Finalize.
	opaque       world.OpacitySet
	transparent  []bool
	nonGreedy    []bool
	lightBlock   []byte
	emission     []byte
	faceTextures [][world.FaceCount]world.TextureID
	cull         []bool // (blockID*count + neighborID) -> hide face
	finalized    bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:       make(map[world.BlockID]*BlockDefinition),
		byName:     make(map[string]world.BlockID),
		textureMap: make(map[string]world.TextureID),
	}
}

// Register adds a block definition. Must happen before Finalize.
func (r *Registry) Register(def *BlockDefinition) {
	if r.finalized {
		return
	}
	r.byID[def.ID] = def
	r.byName[def.Name] = def.ID
	if def.ID > r.maxID {
		r.maxID = def.ID
	}
	r.registerTexture(def.TextureTop)
	r.registerTexture(def.TextureSide)
	r.registerTexture(def.TextureBottom)
}

func (r *Registry) registerTexture(name string) {
	if name == "" {
		return
	}
	if _, exists := r.textureMap[name]; !exists {
		r.textureMap[name] = world.TextureID(len(r.textureNames))
		r.textureNames = append(r.textureNames, name)
	}
}

// Finalize computes the lookup tables used on hot paths: the opacity set,
// transparency and non-greedy sets, per-face texture ids, and the
// face-cull table indexed by (block, neighbor).
func (r *Registry) Finalize() {
	n := int(r.maxID) + 1
	r.opaque = make(world.OpacitySet, n)
	r.transparent = make([]bool, n)
	r.nonGreedy = make([]bool, n)
	r.lightBlock = make([]byte, n)
	r.emission = make([]byte, n)
	r.faceTextures = make([][world.FaceCount]world.TextureID, n)

	for id, def := range r.byID {
		i := int(id)
		r.opaque[i] = def.IsOpaque
		r.transparent[i] = def.Transparent
		r.nonGreedy[i] = def.NonGreedy
		r.lightBlock[i] = def.LightBlocking
		r.emission[i] = def.LightLevel
		for f := 0; f < world.FaceCount; f++ {
			r.faceTextures[i][f] = r.textureForFace(def, world.Face(f))
		}
	}

	// A face against an opaque neighbor is never visible. Identical
	// non-opaque blocks (water-water, glass-glass) also cull so liquid
	// volumes and panes mesh as shells, not internal grids.
	r.cull = make([]bool, n*n)
	for b := 0; b < n; b++ {
		for nb := 0; nb < n; nb++ {
			hide := r.opaque[nb]
			if !hide && b == nb && b != int(world.BlockAir) {
				hide = true
			}
			r.cull[b*n+nb] = hide
		}
	}
	r.finalized = true
}

func (r *Registry) textureForFace(def *BlockDefinition, face world.Face) world.TextureID {
	var name string
	switch face {
	case world.FaceTop:
		name = def.TextureTop
	case world.FaceBottom:
		name = def.TextureBottom
	default:
		name = def.TextureSide
	}
	if id, ok := r.textureMap[name]; ok {
		return id
	}
	return 0
}

// MaxID returns the highest registered block id.
func (r *Registry) MaxID() world.BlockID { return r.maxID }

// Lookup returns the definition for id, nil when unregistered.
func (r *Registry) Lookup(id world.BlockID) *BlockDefinition {
	return r.byID[id]
}

// IDByName resolves a block name.
func (r *Registry) IDByName(name string) (world.BlockID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Opaque returns the shared opacity set.
func (r *Registry) Opaque() world.OpacitySet { return r.opaque }

// IsOpaque reports full opacity for id.
func (r *Registry) IsOpaque(id world.BlockID) bool { return r.opaque.IsOpaque(id) }

// IsTransparent reports whether id meshes into the transparent group.
func (r *Registry) IsTransparent(id world.BlockID) bool {
	return int(id) < len(r.transparent) && r.transparent[id]
}

// IsNonGreedy reports whether id uses custom geometry.
func (r *Registry) IsNonGreedy(id world.BlockID) bool {
	return int(id) < len(r.nonGreedy) && r.nonGreedy[id]
}

// LightBlocking returns the light attenuation of id.
func (r *Registry) LightBlocking(id world.BlockID) byte {
	if int(id) >= len(r.lightBlock) {
		return 0
	}
	return r.lightBlock[id]
}

// Emission returns the blocklight emitted by id.
func (r *Registry) Emission(id world.BlockID) byte {
	if int(id) >= len(r.emission) {
		return 0
	}
	return r.emission[id]
}

// TextureFor returns the texture id for one face of a block.
func (r *Registry) TextureFor(id world.BlockID, face world.Face) world.TextureID {
	if int(id) >= len(r.faceTextures) {
		return 0
	}
	return r.faceTextures[id][face]
}

// ShouldCullFace reports whether a face of block against neighbor is hidden.
func (r *Registry) ShouldCullFace(block, neighbor world.BlockID) bool {
	n := int(r.maxID) + 1
	b, nb := int(block), int(neighbor)
	if b >= n || nb >= n {
		return false
	}
	return r.cull[b*n+nb]
}

// TextureCount returns how many unique textures were registered.
func (r *Registry) TextureCount() int { return len(r.textureNames) }

// TextureName returns the name behind a texture id (renderer-facing).
func (r *Registry) TextureName(id world.TextureID) string {
	if int(id) >= len(r.textureNames) {
		return ""
	}
	return r.textureNames[id]
}

// FaceTextureTable flattens blockID*6+face -> textureID for worker transfer.
func (r *Registry) FaceTextureTable() []world.TextureID {
	out := make([]world.TextureID, (int(r.maxID)+1)*world.FaceCount)
	for id := 0; id <= int(r.maxID); id++ {
		for f := 0; f < world.FaceCount; f++ {
			out[id*world.FaceCount+f] = r.faceTextures[id][f]
		}
	}
	return out
}

// NonGreedyIDs returns the ids meshed as custom geometry.
func (r *Registry) NonGreedyIDs() []world.BlockID {
	var out []world.BlockID
	for id := world.BlockID(0); id <= r.maxID; id++ {
		if r.nonGreedy[id] {
			out = append(out, id)
		}
	}
	return out
}

// TransparentIDs returns the ids meshed into transparent groups.
func (r *Registry) TransparentIDs() []world.BlockID {
	var out []world.BlockID
	for id := world.BlockID(0); id <= r.maxID; id++ {
		if r.transparent[id] {
			out = append(out, id)
		}
	}
	return out
}

// LightBlockingTable returns the per-id attenuation table for workers.
func (r *Registry) LightBlockingTable() []byte {
	out := make([]byte, len(r.lightBlock))
	copy(out, r.lightBlock)
	return out
}
