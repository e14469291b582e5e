package worldgen

import "voxelstream/internal/world"

// BlockWriter is the surface the tree placer needs from the world: writes
// by world coordinates that may create or touch neighbor sub-chunks.
type BlockWriter interface {
	SetGeneratedBlock(wx, wy int64, wz int64, id world.BlockID) bool
	GetGeneratedBlock(wx, wy int64, wz int64) world.BlockID
}

// PlaceTree writes a seeded tree into the world. Runs on the main task
// because the canopy can cross chunk and sub-chunk boundaries.
func PlaceTree(w BlockWriter, seed TreeSeed) {
	top := int64(seed.BaseY + seed.TrunkHeight - 1)

	for y := int64(seed.BaseY); y <= top; y++ {
		w.SetGeneratedBlock(seed.WorldX, y, seed.WorldZ, seed.Wood)
	}

	// Canopy: a 5x5 blob two layers thick below the tip, a 3x3 cap with
	// corner cut-off, and a single crown block.
	for dy := int64(-2); dy <= -1; dy++ {
		for dx := int64(-2); dx <= 2; dx++ {
			for dz := int64(-2); dz <= 2; dz++ {
				if dx == 0 && dz == 0 {
					continue
				}
				if absInt64(dx) == 2 && absInt64(dz) == 2 && dy == -1 {
					continue
				}
				placeLeaf(w, seed.WorldX+dx, top+dy, seed.WorldZ+dz, seed.Leaves)
			}
		}
	}
	for dx := int64(-1); dx <= 1; dx++ {
		for dz := int64(-1); dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			if absInt64(dx) == 1 && absInt64(dz) == 1 {
				continue
			}
			placeLeaf(w, seed.WorldX+dx, top, seed.WorldZ+dz, seed.Leaves)
		}
	}
	placeLeaf(w, seed.WorldX, top+1, seed.WorldZ, seed.Leaves)
}

func placeLeaf(w BlockWriter, wx, wy, wz int64, leaves world.BlockID) {
	if w.GetGeneratedBlock(wx, wy, wz) != world.BlockAir {
		return
	}
	w.SetGeneratedBlock(wx, wy, wz, leaves)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
