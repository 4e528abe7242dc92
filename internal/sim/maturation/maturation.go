// Package maturation evolves already-corrupted voxels inside a source's
// region, using the rule table's ordered maturation rules.
package maturation

import (
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/frontier"
	"festering.ai/internal/sim/neighborhood"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rng"
	"festering.ai/internal/sim/voxel"
)

type Config struct {
	Attempts           int
	MaxSearchRadius    int
	ActiveSearchRadius int
	IdleSearchRadius   int
	VegetationChance   float64
	RootsChance        float64
}

func DefaultConfig() Config {
	return Config{
		Attempts:           2,
		MaxSearchRadius:    20,
		ActiveSearchRadius: 15,
		IdleSearchRadius:   5,
		VegetationChance:   0.4,
		RootsChance:        0.7,
	}
}

type Pass struct {
	eng *frontier.Engine
	cfg Config
}

// New builds a pass that writes through eng so changes reach the same hook
// as spreading.
func New(eng *frontier.Engine, cfg Config) *Pass {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultConfig().Attempts
	}
	return &Pass{eng: eng, cfg: cfg}
}

// SearchRadius is how far from the center samples are drawn. A source that
// is still growing samples wider.
func (m *Pass) SearchRadius(src *registry.Source) int {
	r := m.cfg.IdleSearchRadius
	if src.Frontier.Len() > 0 {
		r = m.cfg.ActiveSearchRadius
	}
	if r > m.cfg.MaxSearchRadius {
		r = m.cfg.MaxSearchRadius
	}
	return r
}

// MatureRegion samples random voxels around the source and evolves the
// corrupted ones. It returns the number of voxels evolved; vegetation
// placed on fresh nylium is not counted.
func (m *Pass) MatureRegion(src *registry.Source, w frontier.World, r rng.Source) int {
	tbl := m.eng.Rules()
	rad := m.SearchRadius(src)
	evolved := 0
	for a := 0; a < m.cfg.Attempts; a++ {
		p := src.Center.Add(r.Intn(2*rad+1)-rad, r.Intn(2*rad+1)-rad, r.Intn(2*rad+1)-rad)
		if !w.Loaded(p) || !src.Contains(p) {
			continue
		}
		cur := w.Block(p)
		if !tbl.IsAlreadyCorrupted(cur) {
			continue
		}
		f := neighborhood.Analyze(w, p)
		next, ok := tbl.Mature(cur, f, r)
		if !ok {
			continue
		}
		if !m.eng.Write(w, src.Center, p, next, frontier.CauseMature) {
			continue
		}
		evolved++
		if f.AirAbove {
			m.sprout(src, w, r, p, next.ID)
		}
	}
	return evolved
}

func (m *Pass) sprout(src *registry.Source, w frontier.World, r rng.Source, p voxel.Pos, nylium block.ID) {
	var roots, fungus block.ID
	switch nylium {
	case block.CrimsonNylium:
		roots, fungus = block.CrimsonRoots, block.CrimsonFungus
	case block.WarpedNylium:
		roots, fungus = block.WarpedRoots, block.WarpedFungus
	default:
		return
	}
	if !rng.Chance(r, m.cfg.VegetationChance) {
		return
	}
	plant := fungus
	if rng.Chance(r, m.cfg.RootsChance) {
		plant = roots
	}
	above := p.Up()
	if !src.Contains(above) || !w.Loaded(above) || !w.Block(above).IsAir() {
		return
	}
	m.eng.Write(w, src.Center, above, block.Of(plant), frontier.CauseVegetation)
}
