package world

import (
	"festering.ai/internal/sim/engine"
	"festering.ai/internal/sim/frontier"
	"festering.ai/internal/sim/maturation"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/terrain"
	"festering.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	// Worldgen. Height must be a multiple of 16.
	Height         int
	ChunkRadius    int
	SeaLevel       int
	BaseHeight     int
	Amplitude      float64
	NoiseScale     float64
	TreePermille   int
	FlowerPermille int

	// Engine cadence and caps.
	SpreadIntervalTicks int
	MaxSourcesPerTick   int
	RequirePortal       bool
	ValidityHalfSize    int

	RadiusPerStrength int
	MergeRadius       int

	SpreadAttempts       int
	DiscoveryBudget      int
	MaxDepthBelowSurface int
	SpreadVertically     bool
	TransformLiquid      bool

	MatureAttempts   int
	VegetationChance float64

	BurstSizePerStrength int
	BurstAttemptFactor   int
	BurstTriggerDistance int

	// Operational parameters. Zero disables.
	SnapshotEveryTicks    int
	SaveSourcesEveryTicks int
}

// ConfigFromTuning maps the tuning file onto a world config.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) WorldConfig {
	saveTicks := 0
	if t.SaveSourcesEveryMs > 0 {
		saveTicks = t.SaveSourcesEveryMs * t.TickRateHz / 1000
		if saveTicks < 1 {
			saveTicks = 1
		}
	}
	return WorldConfig{
		ID:         id,
		TickRateHz: t.TickRateHz,
		Seed:       seed,

		Height:         t.WorldGen.Height,
		ChunkRadius:    t.WorldGen.ChunkRadius,
		SeaLevel:       t.WorldGen.SeaLevel,
		BaseHeight:     t.WorldGen.BaseHeight,
		Amplitude:      t.WorldGen.Amplitude,
		NoiseScale:     t.WorldGen.NoiseScale,
		TreePermille:   t.WorldGen.TreePermille,
		FlowerPermille: t.WorldGen.FlowerPermille,

		SpreadIntervalTicks: t.SpreadIntervalTicks,
		MaxSourcesPerTick:   t.MaxSourcesPerTick,
		RequirePortal:       true,
		ValidityHalfSize:    t.Sources.ValidityHalfSize,

		RadiusPerStrength: t.Sources.RadiusPerStrength,
		MergeRadius:       t.Sources.MergeRadius,

		SpreadAttempts:       t.Spread.Attempts,
		DiscoveryBudget:      t.Spread.DiscoveryBudget,
		MaxDepthBelowSurface: t.Spread.MaxDepthBelowSurface,
		SpreadVertically:     t.Spread.SpreadVertically,
		TransformLiquid:      t.Spread.TransformWaterToLava,

		MatureAttempts:   t.Mature.Attempts,
		VegetationChance: t.Mature.VegetationChance,

		BurstSizePerStrength: t.Burst.SizePerStrength,
		BurstAttemptFactor:   t.Burst.AttemptFactor,
		BurstTriggerDistance: t.Burst.TriggerDistance,

		SnapshotEveryTicks:    t.SnapshotEveryTicks,
		SaveSourcesEveryTicks: saveTicks,
	}
}

func (c *WorldConfig) applyDefaults() {
	d := ConfigFromTuning(c.ID, c.Seed, tuning.Defaults())
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.Height <= 0 || c.Height%ChunkSize != 0 {
		c.Height = d.Height
	}
	if c.ChunkRadius < 0 {
		c.ChunkRadius = 0
	}
	if c.SeaLevel <= 0 || c.SeaLevel >= c.Height {
		c.SeaLevel = c.Height / 2
	}
	if c.BaseHeight <= 0 || c.BaseHeight >= c.Height {
		c.BaseHeight = c.SeaLevel + 2
	}
	if c.SpreadIntervalTicks <= 0 {
		c.SpreadIntervalTicks = d.SpreadIntervalTicks
	}
	if c.MaxSourcesPerTick <= 0 {
		c.MaxSourcesPerTick = d.MaxSourcesPerTick
	}
	if c.ValidityHalfSize <= 0 {
		c.ValidityHalfSize = d.ValidityHalfSize
	}
	if c.BurstSizePerStrength <= 0 {
		c.BurstSizePerStrength = d.BurstSizePerStrength
	}
	if c.BurstTriggerDistance <= 0 {
		c.BurstTriggerDistance = d.BurstTriggerDistance
	}
	if c.VegetationChance < 0 || c.VegetationChance > 1 {
		c.VegetationChance = d.VegetationChance
	}
}

func (c WorldConfig) terrainConfig() terrain.Config {
	return terrain.Config{
		Seed:           c.Seed,
		Height:         c.Height,
		SeaLevel:       c.SeaLevel,
		BaseHeight:     c.BaseHeight,
		Amplitude:      c.Amplitude,
		NoiseScale:     c.NoiseScale,
		TreePermille:   c.TreePermille,
		FlowerPermille: c.FlowerPermille,
	}
}

func (c WorldConfig) registryConfig() registry.Config {
	return registry.Config{
		RadiusPerStrength: c.RadiusPerStrength,
		MergeRadius:       c.MergeRadius,
	}
}

func (c WorldConfig) frontierConfig() frontier.Config {
	fc := frontier.DefaultConfig()
	fc.SpreadAttempts = c.SpreadAttempts
	fc.DiscoveryBudget = c.DiscoveryBudget
	fc.MaxDepthBelowSurface = c.MaxDepthBelowSurface
	fc.SpreadVertically = c.SpreadVertically
	fc.TransformLiquid = c.TransformLiquid
	if c.BurstAttemptFactor > 0 {
		fc.BurstAttemptFactor = c.BurstAttemptFactor
	}
	return fc
}

func (c WorldConfig) maturationConfig() maturation.Config {
	mc := maturation.DefaultConfig()
	if c.MatureAttempts > 0 {
		mc.Attempts = c.MatureAttempts
	}
	mc.VegetationChance = c.VegetationChance
	return mc
}

func (c WorldConfig) engineConfig() engine.Config {
	return engine.Config{
		MaxSourcesPerTick:    c.MaxSourcesPerTick,
		RequirePortal:        c.RequirePortal,
		ValidityHalfSize:     c.ValidityHalfSize,
		BurstSizePerStrength: c.BurstSizePerStrength,
		BurstTriggerDistance: c.BurstTriggerDistance,
	}
}
