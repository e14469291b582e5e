package registry

import "voxelstream/internal/world"

// Default builds the standard world block set.
func Default() *Registry {
	r := New()

	r.Register(&BlockDefinition{
		ID: world.BlockAir, Name: "air",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockStone, Name: "stone",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 1.5,
		TextureTop: "stone.png", TextureSide: "stone.png", TextureBottom: "stone.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockDirt, Name: "dirt",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 0.5,
		TextureTop: "dirt.png", TextureSide: "dirt.png", TextureBottom: "dirt.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockGrass, Name: "grass",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 0.6,
		TextureTop: "grass_top.png", TextureSide: "grass_side.png", TextureBottom: "dirt.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockSand, Name: "sand",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 0.5,
		TextureTop: "sand.png", TextureSide: "sand.png", TextureBottom: "sand.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockGravel, Name: "gravel",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 0.6,
		TextureTop: "gravel.png", TextureSide: "gravel.png", TextureBottom: "gravel.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockBedrock, Name: "bedrock",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: -1,
		TextureTop: "bedrock.png", TextureSide: "bedrock.png", TextureBottom: "bedrock.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockWater, Name: "water",
		IsLiquid: true, LightBlocking: 1, Hardness: 0, Transparent: true,
		Tags:       []string{"liquid"},
		TextureTop: "water.png", TextureSide: "water.png", TextureBottom: "water.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockSandstone, Name: "sandstone",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 0.8,
		TextureTop: "sandstone_top.png", TextureSide: "sandstone.png", TextureBottom: "sandstone.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockWood, Name: "wood",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 2,
		TextureTop: "log_top.png", TextureSide: "log_side.png", TextureBottom: "log_top.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockLeaves, Name: "leaves",
		IsSolid: true, LightBlocking: 1, Hardness: 0.2, Transparent: true,
		Tags:       []string{"plant"},
		TextureTop: "leaves.png", TextureSide: "leaves.png", TextureBottom: "leaves.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockCoalOre, Name: "coal_ore",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 3,
		Tags:       []string{"ore"},
		TextureTop: "coal_ore.png", TextureSide: "coal_ore.png", TextureBottom: "coal_ore.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockIronOre, Name: "iron_ore",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 3,
		Tags:       []string{"ore"},
		TextureTop: "iron_ore.png", TextureSide: "iron_ore.png", TextureBottom: "iron_ore.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockGoldOre, Name: "gold_ore",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 3,
		Tags:       []string{"ore"},
		TextureTop: "gold_ore.png", TextureSide: "gold_ore.png", TextureBottom: "gold_ore.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockDiamondOre, Name: "diamond_ore",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 3,
		Tags:       []string{"ore"},
		TextureTop: "diamond_ore.png", TextureSide: "diamond_ore.png", TextureBottom: "diamond_ore.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockSnow, Name: "snow",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 0.2,
		TextureTop: "snow.png", TextureSide: "snow.png", TextureBottom: "snow.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockIce, Name: "ice",
		IsSolid: true, LightBlocking: 2, Hardness: 0.5, Transparent: true,
		TextureTop: "ice.png", TextureSide: "ice.png", TextureBottom: "ice.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockTorch, Name: "torch",
		LightLevel: 14, Hardness: 0, NonGreedy: true,
		TextureTop: "torch.png", TextureSide: "torch.png", TextureBottom: "torch.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockGlass, Name: "glass",
		IsSolid: true, LightBlocking: 0, Hardness: 0.3, Transparent: true,
		TextureTop: "glass.png", TextureSide: "glass.png", TextureBottom: "glass.png",
	})
	r.Register(&BlockDefinition{
		ID: world.BlockCliffStone, Name: "cliff_stone",
		IsOpaque: true, IsSolid: true, LightBlocking: 15, Hardness: 2,
		TextureTop: "cliff_stone.png", TextureSide: "cliff_stone.png", TextureBottom: "cliff_stone.png",
	})

	r.Finalize()
	return r
}
