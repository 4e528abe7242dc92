package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz          int `yaml:"tick_rate_hz"`
	SpreadIntervalTicks int `yaml:"spread_interval_ticks"`
	MaxSourcesPerTick   int `yaml:"max_sources_per_tick"`
	SnapshotEveryTicks  int `yaml:"snapshot_every_ticks"`
	SaveSourcesEveryMs  int `yaml:"save_sources_every_ms"`

	Sources  Sources  `yaml:"sources"`
	Spread   Spread   `yaml:"spread"`
	Mature   Mature   `yaml:"maturation"`
	Burst    Burst    `yaml:"burst"`
	WorldGen WorldGen `yaml:"worldgen"`
}

type Sources struct {
	RadiusPerStrength int `yaml:"radius_per_strength"`
	MergeRadius       int `yaml:"merge_radius"`
	ValidityHalfSize  int `yaml:"validity_half_size"`
}

type Spread struct {
	Attempts             int  `yaml:"attempts"`
	DiscoveryBudget      int  `yaml:"discovery_budget"`
	MaxDepthBelowSurface int  `yaml:"max_depth_below_surface"`
	SpreadVertically     bool `yaml:"spread_vertically"`
	TransformWaterToLava bool `yaml:"transform_water_to_lava"`
}

type Mature struct {
	Attempts         int     `yaml:"attempts"`
	VegetationChance float64 `yaml:"vegetation_chance"`
}

type Burst struct {
	SizePerStrength int `yaml:"size_per_strength"`
	AttemptFactor   int `yaml:"attempt_factor"`
	TriggerDistance int `yaml:"trigger_distance"`
}

type WorldGen struct {
	ChunkRadius    int     `yaml:"chunk_radius"`
	Height         int     `yaml:"height"`
	SeaLevel       int     `yaml:"sea_level"`
	BaseHeight     int     `yaml:"base_height"`
	Amplitude      float64 `yaml:"amplitude"`
	NoiseScale     float64 `yaml:"noise_scale"`
	TreePermille   int     `yaml:"tree_permille"`
	FlowerPermille int     `yaml:"flower_permille"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:          20,
		SpreadIntervalTicks: 20,
		MaxSourcesPerTick:   10,
		SnapshotEveryTicks:  6000,
		SaveSourcesEveryMs:  30000,
		Sources: Sources{
			RadiusPerStrength: 64,
			MergeRadius:       5,
			ValidityHalfSize:  2,
		},
		Spread: Spread{
			Attempts:             3,
			DiscoveryBudget:      50000,
			MaxDepthBelowSurface: 4,
			SpreadVertically:     true,
			TransformWaterToLava: true,
		},
		Mature: Mature{
			Attempts:         2,
			VegetationChance: 0.4,
		},
		Burst: Burst{
			SizePerStrength: 5,
			AttemptFactor:   10,
			TriggerDistance: 10,
		},
		WorldGen: WorldGen{
			ChunkRadius:    4,
			Height:         128,
			SeaLevel:       62,
			BaseHeight:     64,
			Amplitude:      10,
			NoiseScale:     48,
			TreePermille:   8,
			FlowerPermille: 30,
		},
	}
}

// Load reads path over Defaults, so a partial file only overrides what it
// names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.SpreadIntervalTicks <= 0:
		return fmt.Errorf("spread_interval_ticks must be > 0")
	case t.MaxSourcesPerTick <= 0:
		return fmt.Errorf("max_sources_per_tick must be > 0")
	case t.Sources.RadiusPerStrength <= 0:
		return fmt.Errorf("sources.radius_per_strength must be > 0")
	case t.Spread.Attempts <= 0:
		return fmt.Errorf("spread.attempts must be > 0")
	case t.Spread.DiscoveryBudget <= 0:
		return fmt.Errorf("spread.discovery_budget must be > 0")
	case t.Mature.VegetationChance < 0 || t.Mature.VegetationChance > 1:
		return fmt.Errorf("maturation.vegetation_chance must be within [0,1]")
	case t.WorldGen.Height < 16 || t.WorldGen.Height%16 != 0:
		return fmt.Errorf("worldgen.height must be a positive multiple of 16")
	case t.WorldGen.SeaLevel <= 0 || t.WorldGen.SeaLevel >= t.WorldGen.Height:
		return fmt.Errorf("worldgen.sea_level must be within (0,height)")
	}
	return nil
}
