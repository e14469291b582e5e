package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelstream/internal/registry"
	"voxelstream/internal/world"
	"voxelstream/internal/worldgen"
)

// WorldGenConfig is the yaml-decoded worldgen definition: the seed, the
// sea level, and the biome set with block references by name.
type WorldGenConfig struct {
	Seed     int64         `yaml:"seed"`
	SeaLevel int           `yaml:"seaLevel"`
	Biomes   []BiomeConfig `yaml:"biomes"`
}

type BiomeConfig struct {
	Name string `yaml:"name"`

	HeightOffset    float64 `yaml:"heightOffset"`
	HeightAmplitude float64 `yaml:"heightAmplitude"`

	SurfaceBlock    string `yaml:"surfaceBlock"`
	SubsurfaceBlock string `yaml:"subsurfaceBlock"`
	SubsurfaceDepth int    `yaml:"subsurfaceDepth"`
	BaseBlock       string `yaml:"baseBlock"`

	Caves *CaveConfig   `yaml:"caves,omitempty"`
	Cliff *CliffConfig  `yaml:"cliff,omitempty"`
	Ores  []OreConfig   `yaml:"ores,omitempty"`
	Water *WaterConfig  `yaml:"water,omitempty"`
	Trees *TreeConfig   `yaml:"trees,omitempty"`
}

type CaveConfig struct {
	MinY            int     `yaml:"minY"`
	MaxY            int     `yaml:"maxY"`
	Frequency       float64 `yaml:"frequency"`
	Threshold       float64 `yaml:"threshold"`
	LayerPeakY      float64 `yaml:"layerPeakY"`
	LayerSpacing    float64 `yaml:"layerSpacing"`
	LayerBonus      float64 `yaml:"layerBonus"`
	CheeseEnabled   bool    `yaml:"cheeseEnabled"`
	CheeseFrequency float64 `yaml:"cheeseFrequency"`
	CheeseThreshold float64 `yaml:"cheeseThreshold"`
}

type CliffConfig struct {
	Frequency float64 `yaml:"frequency"`
	Threshold float64 `yaml:"threshold"`
	MaxHeight int     `yaml:"maxHeight"`
	Block     string  `yaml:"block"`
}

type OreConfig struct {
	Block       string   `yaml:"block"`
	Frequency   int      `yaml:"frequency"`
	PeakY       float64  `yaml:"peakY"`
	YSpread     float64  `yaml:"ySpread"`
	MinY        int      `yaml:"minY"`
	MaxY        int      `yaml:"maxY"`
	VeinSize    int      `yaml:"veinSize"`
	Replaceable []string `yaml:"replaceable"`
	Salt        int64    `yaml:"salt"`
}

type WaterConfig struct {
	Level           int     `yaml:"level"`
	RegionFrequency float64 `yaml:"regionFrequency"`
	RegionThreshold float64 `yaml:"regionThreshold"`
	MinDepth        int     `yaml:"minDepth"`
	Liquid          string  `yaml:"liquid"`
}

type TreeConfig struct {
	Density  float64 `yaml:"density"`
	TrunkMin int     `yaml:"trunkMin"`
	TrunkMax int     `yaml:"trunkMax"`
	Wood     string  `yaml:"wood"`
	Leaves   string  `yaml:"leaves"`
}

// LoadWorldGen reads a worldgen config from a yaml file. An empty path
// returns the defaults.
func LoadWorldGen(path string) (*WorldGenConfig, error) {
	cfg := DefaultWorldGen()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open worldgen config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse worldgen config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate worldgen config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the generators cannot run with.
func (c *WorldGenConfig) Validate() error {
	if len(c.Biomes) == 0 {
		return errors.New("worldgen: at least one biome required")
	}
	if c.SeaLevel < 1 || c.SeaLevel > 512 {
		return fmt.Errorf("worldgen: sea level %d out of range", c.SeaLevel)
	}
	for i := range c.Biomes {
		b := &c.Biomes[i]
		if b.Name == "" {
			return fmt.Errorf("worldgen: biome %d has no name", i)
		}
		if b.SurfaceBlock == "" || b.BaseBlock == "" {
			return fmt.Errorf("worldgen: biome %q missing surface/base block", b.Name)
		}
		if b.SubsurfaceDepth < 0 {
			return fmt.Errorf("worldgen: biome %q negative subsurface depth", b.Name)
		}
		for _, ore := range b.Ores {
			if ore.VeinSize < 1 {
				return fmt.Errorf("worldgen: biome %q ore %q vein size < 1", b.Name, ore.Block)
			}
			if ore.MinY > ore.MaxY {
				return fmt.Errorf("worldgen: biome %q ore %q minY > maxY", b.Name, ore.Block)
			}
		}
		if b.Trees != nil && (b.Trees.Density < 0 || b.Trees.Density > 64) {
			return fmt.Errorf("worldgen: biome %q tree density out of [0,64]", b.Name)
		}
	}
	return nil
}

// Resolve turns block names into ids against the registry and returns the
// runnable biome set.
func (c *WorldGenConfig) Resolve(reg *registry.Registry) ([]*worldgen.Biome, error) {
	out := make([]*worldgen.Biome, 0, len(c.Biomes))
	for i := range c.Biomes {
		bc := &c.Biomes[i]
		b := &worldgen.Biome{
			Name:            bc.Name,
			HeightOffset:    bc.HeightOffset,
			HeightAmplitude: bc.HeightAmplitude,
			SubsurfaceDepth: bc.SubsurfaceDepth,
		}
		var err error
		if b.Surface, err = resolveBlock(reg, bc.Name, bc.SurfaceBlock); err != nil {
			return nil, err
		}
		if bc.SubsurfaceBlock != "" {
			if b.Subsurface, err = resolveBlock(reg, bc.Name, bc.SubsurfaceBlock); err != nil {
				return nil, err
			}
		} else {
			b.Subsurface = b.Surface
		}
		if b.Base, err = resolveBlock(reg, bc.Name, bc.BaseBlock); err != nil {
			return nil, err
		}

		if bc.Caves != nil {
			b.Caves = worldgen.CaveSettings{
				Enabled: true,
				MinY:    bc.Caves.MinY, MaxY: bc.Caves.MaxY,
				Frequency: bc.Caves.Frequency, Threshold: bc.Caves.Threshold,
				LayerPeakY: bc.Caves.LayerPeakY, LayerSpacing: bc.Caves.LayerSpacing,
				LayerBonus:    bc.Caves.LayerBonus,
				CheeseEnabled: bc.Caves.CheeseEnabled,
				CheeseFrequency: bc.Caves.CheeseFrequency,
				CheeseThreshold: bc.Caves.CheeseThreshold,
			}
		}
		if bc.Cliff != nil {
			block, err := resolveBlock(reg, bc.Name, bc.Cliff.Block)
			if err != nil {
				return nil, err
			}
			b.Cliff = worldgen.CliffSettings{
				Enabled:   true,
				Frequency: bc.Cliff.Frequency, Threshold: bc.Cliff.Threshold,
				MaxHeight: bc.Cliff.MaxHeight, Block: block,
			}
		}
		for _, oc := range bc.Ores {
			block, err := resolveBlock(reg, bc.Name, oc.Block)
			if err != nil {
				return nil, err
			}
			ore := worldgen.OreSettings{
				Block: block, Frequency: oc.Frequency,
				PeakY: oc.PeakY, YSpread: oc.YSpread,
				MinY: oc.MinY, MaxY: oc.MaxY,
				VeinSize: oc.VeinSize, Salt: oc.Salt,
			}
			for _, name := range oc.Replaceable {
				id, err := resolveBlock(reg, bc.Name, name)
				if err != nil {
					return nil, err
				}
				ore.Replaceable = append(ore.Replaceable, id)
			}
			b.Ores = append(b.Ores, ore)
		}
		if bc.Water != nil {
			liquid, err := resolveBlock(reg, bc.Name, bc.Water.Liquid)
			if err != nil {
				return nil, err
			}
			b.Water = worldgen.WaterSettings{
				Enabled: true, Level: bc.Water.Level,
				RegionFrequency: bc.Water.RegionFrequency,
				RegionThreshold: bc.Water.RegionThreshold,
				MinDepth:        bc.Water.MinDepth, Liquid: liquid,
			}
		}
		if bc.Trees != nil {
			wood, err := resolveBlock(reg, bc.Name, bc.Trees.Wood)
			if err != nil {
				return nil, err
			}
			leaves, err := resolveBlock(reg, bc.Name, bc.Trees.Leaves)
			if err != nil {
				return nil, err
			}
			b.Trees = worldgen.TreeSettings{
				Density: bc.Trees.Density,
				TrunkMin: bc.Trees.TrunkMin, TrunkMax: bc.Trees.TrunkMax,
				Wood: wood, Leaves: leaves,
			}
		}
		out = append(out, b)
	}
	return out, nil
}

func resolveBlock(reg *registry.Registry, biome, name string) (world.BlockID, error) {
	got, ok := reg.IDByName(name)
	if !ok {
		return 0, fmt.Errorf("worldgen: biome %q references unknown block %q", biome, name)
	}
	return got, nil
}

// DefaultWorldGen is the built-in biome set used when no config file is
// given: plains, forest, desert, mountains, and ocean.
func DefaultWorldGen() *WorldGenConfig {
	stdOres := []OreConfig{
		{Block: "coal_ore", Frequency: 12, PeakY: 48, YSpread: 20, MinY: 4, MaxY: 128, VeinSize: 12,
			Replaceable: []string{"stone"}, Salt: 101},
		{Block: "iron_ore", Frequency: 8, PeakY: 32, YSpread: 16, MinY: 4, MaxY: 96, VeinSize: 8,
			Replaceable: []string{"stone"}, Salt: 202},
		{Block: "gold_ore", Frequency: 3, PeakY: 20, YSpread: 10, MinY: 4, MaxY: 48, VeinSize: 6,
			Replaceable: []string{"stone"}, Salt: 303},
		{Block: "diamond_ore", Frequency: 2, PeakY: 12, YSpread: 8, MinY: 4, MaxY: 24, VeinSize: 5,
			Replaceable: []string{"stone"}, Salt: 404},
	}
	stdCaves := &CaveConfig{
		MinY: 4, MaxY: 180, Frequency: 0.015, Threshold: 0.015,
		LayerPeakY: 28, LayerSpacing: 40, LayerBonus: 0.008,
		CheeseEnabled: true, CheeseFrequency: 0.008, CheeseThreshold: 0.72,
	}
	return &WorldGenConfig{
		Seed:     1337,
		SeaLevel: 64,
		Biomes: []BiomeConfig{
			{
				Name: "plains", HeightOffset: 4, HeightAmplitude: 6,
				SurfaceBlock: "grass", SubsurfaceBlock: "dirt", SubsurfaceDepth: 3, BaseBlock: "stone",
				Caves: stdCaves, Ores: stdOres,
				Trees: &TreeConfig{Density: 2, TrunkMin: 4, TrunkMax: 6, Wood: "wood", Leaves: "leaves"},
			},
			{
				Name: "forest", HeightOffset: 6, HeightAmplitude: 10,
				SurfaceBlock: "grass", SubsurfaceBlock: "dirt", SubsurfaceDepth: 3, BaseBlock: "stone",
				Caves: stdCaves, Ores: stdOres,
				Trees: &TreeConfig{Density: 14, TrunkMin: 4, TrunkMax: 8, Wood: "wood", Leaves: "leaves"},
			},
			{
				Name: "desert", HeightOffset: 2, HeightAmplitude: 5,
				SurfaceBlock: "sand", SubsurfaceBlock: "sand", SubsurfaceDepth: 4, BaseBlock: "sandstone",
				Caves: stdCaves, Ores: stdOres,
			},
			{
				Name: "mountains", HeightOffset: 24, HeightAmplitude: 48,
				SurfaceBlock: "stone", SubsurfaceBlock: "stone", SubsurfaceDepth: 2, BaseBlock: "stone",
				Caves: stdCaves, Ores: stdOres,
				Cliff: &CliffConfig{Frequency: 0.004, Threshold: 0.45, MaxHeight: 22, Block: "cliff_stone"},
			},
			{
				Name: "ocean", HeightOffset: -18, HeightAmplitude: 8,
				SurfaceBlock: "gravel", SubsurfaceBlock: "gravel", SubsurfaceDepth: 2, BaseBlock: "stone",
				Ores: stdOres,
				Water: &WaterConfig{Level: 64, RegionFrequency: 0.002, RegionThreshold: -0.6,
					MinDepth: 1, Liquid: "water"},
			},
		},
	}
}
