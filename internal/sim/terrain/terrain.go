// Package terrain generates natural overworld columns from a seed: rolling
// hills from Perlin noise, a sea level, biomes and scattered trees.
package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"

	"festering.ai/internal/sim/block"
)

type Biome uint8

const (
	Plains Biome = iota
	Forest
	Desert
	Snowy
)

func (b Biome) String() string {
	switch b {
	case Forest:
		return "FOREST"
	case Desert:
		return "DESERT"
	case Snowy:
		return "SNOWY"
	default:
		return "PLAINS"
	}
}

type Config struct {
	Seed           int64
	Height         int
	SeaLevel       int
	BaseHeight     int
	Amplitude      float64
	NoiseScale     float64
	TreePermille   int
	FlowerPermille int
}

type Generator struct {
	cfg    Config
	height *perlin.Perlin
	biome  *perlin.Perlin
}

func New(cfg Config) *Generator {
	if cfg.NoiseScale <= 0 {
		cfg.NoiseScale = 48
	}
	return &Generator{
		cfg:    cfg,
		height: perlin.NewPerlin(2.0, 2.0, 3, cfg.Seed),
		biome:  perlin.NewPerlin(2.0, 2.0, 2, cfg.Seed+7919),
	}
}

func (g *Generator) Config() Config { return g.cfg }

// noise01 samples p at (x,z) scaled into [0,1].
func noise01(p *perlin.Perlin, x, z, scale float64) float64 {
	v := (p.Noise2D(x/scale, z/scale) + 1) / 2
	return math.Max(0, math.Min(1, v))
}

// SurfaceY is the height of the topmost ground voxel at (x,z).
func (g *Generator) SurfaceY(x, z int) int {
	n := noise01(g.height, float64(x), float64(z), g.cfg.NoiseScale)
	y := g.cfg.BaseHeight + int(math.Round((n-0.5)*2*g.cfg.Amplitude))
	if y < 1 {
		y = 1
	}
	if y > g.cfg.Height-8 {
		y = g.cfg.Height - 8
	}
	return y
}

func (g *Generator) BiomeAt(x, z int) Biome {
	n := noise01(g.biome, float64(x), float64(z), g.cfg.NoiseScale*4)
	switch {
	case n < 0.3:
		return Desert
	case n < 0.55:
		return Plains
	case n < 0.8:
		return Forest
	default:
		return Snowy
	}
}

// treeAt reports whether a tree trunk grows from the column at (x,z).
func (g *Generator) treeAt(x, z int) bool {
	if x%3 != 0 || z%3 != 0 {
		return false
	}
	b := g.BiomeAt(x, z)
	if b == Desert || g.SurfaceY(x, z) <= g.cfg.SeaLevel {
		return false
	}
	permille := g.cfg.TreePermille
	if b == Forest {
		permille *= 6
	}
	return int(hash2(g.cfg.Seed+11, x, z)%1000) < permille
}

const (
	trunkHeight = 4
	canopyReach = 2
)

// Column fills every voxel of the column at (x,z) from y=0 to Height-1.
func (g *Generator) Column(x, z int, set func(y int, s block.State)) {
	surface := g.SurfaceY(x, z)
	biome := g.BiomeAt(x, z)
	sea := g.cfg.SeaLevel
	underwater := surface < sea

	for y := 0; y < g.cfg.Height; y++ {
		var id block.ID
		switch {
		case y == 0:
			id = block.Bedrock
		case y < surface-3:
			id = block.Stone
			if y < 8 {
				id = block.Deepslate
			} else if hash3(g.cfg.Seed+3, x, y, z)%1000 < 6 {
				id = block.GoldOre
			}
		case y < surface:
			id = block.Dirt
			if biome == Desert || underwater {
				id = block.Sand
			}
		case y == surface:
			id = g.topBlock(biome, underwater, x, z)
		case y <= sea:
			id = block.Water
			if y == sea && biome == Snowy {
				id = block.Ice
			}
		default:
			id = block.Air
		}
		set(y, block.Of(id))
	}
	if underwater {
		return
	}

	above := surface + 1
	if above < g.cfg.Height {
		switch {
		case biome == Snowy:
			set(above, block.Of(block.Snow))
		case biome != Desert && int(hash2(g.cfg.Seed+23, x, z)%1000) < g.cfg.FlowerPermille:
			set(above, block.Of(block.Poppy))
		case biome == Plains && hash2(g.cfg.Seed+29, x, z)%4 == 0:
			set(above, block.Of(block.ShortGrass))
		}
	}
	g.trees(x, z, set)
}

func (g *Generator) topBlock(b Biome, underwater bool, x, z int) block.ID {
	if underwater {
		if hash2(g.cfg.Seed+17, x, z)%5 == 0 {
			return block.Clay
		}
		return block.Gravel
	}
	switch b {
	case Desert:
		return block.Sand
	case Snowy:
		return block.SnowBlock
	}
	return block.GrassBlock
}

// trees places the trunks rooted in this column and the canopy of any tree
// within reach whose leaves overhang it.
func (g *Generator) trees(x, z int, set func(y int, s block.State)) {
	log := block.OakLog
	leaves := block.OakLeaves
	if g.BiomeAt(x, z) == Snowy {
		log, leaves = block.BirchLog, block.BirchLeaves
	}
	ground := g.SurfaceY(x, z)
	for dx := -canopyReach; dx <= canopyReach; dx++ {
		for dz := -canopyReach; dz <= canopyReach; dz++ {
			tx, tz := x+dx, z+dz
			if !g.treeAt(tx, tz) {
				continue
			}
			base := g.SurfaceY(tx, tz) + 1
			if dx == 0 && dz == 0 {
				for y := base; y < base+trunkHeight && y < g.cfg.Height; y++ {
					set(y, block.Of(log))
				}
				if top := base + trunkHeight; top < g.cfg.Height {
					set(top, block.Of(leaves))
				}
				continue
			}
			reach := abs(dx) + abs(dz)
			for y := base + trunkHeight - 2; y <= base+trunkHeight; y++ {
				if y <= ground || y >= g.cfg.Height || reach > canopyReach+1 {
					continue
				}
				if y == base+trunkHeight && reach > 1 {
					continue
				}
				set(y, block.Of(leaves))
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9))
}
