// Package engine drives sources through spreading and maturation once per
// processing cycle. It owns no state besides a round-robin cursor: sources
// live in the registry and blocks in the world.
package engine

import (
	"fmt"
	"slices"

	"festering.ai/internal/sim/frontier"
	"festering.ai/internal/sim/maturation"
	"festering.ai/internal/sim/portal"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rng"
	"festering.ai/internal/sim/voxel"
)

type Config struct {
	MaxSourcesPerTick int
	// RequirePortal removes a source once no portal block is left within
	// ValidityHalfSize of its center.
	RequirePortal        bool
	ValidityHalfSize     int
	BurstSizePerStrength int
	BurstTriggerDistance int
}

func DefaultConfig() Config {
	return Config{
		MaxSourcesPerTick:    10,
		RequirePortal:        true,
		ValidityHalfSize:     2,
		BurstSizePerStrength: 5,
		BurstTriggerDistance: 10,
	}
}

type Engine struct {
	spread *frontier.Engine
	mature *maturation.Pass
	cfg    Config
	cursor int
}

func New(spread *frontier.Engine, mature *maturation.Pass, cfg Config) *Engine {
	if cfg.MaxSourcesPerTick <= 0 {
		cfg.MaxSourcesPerTick = DefaultConfig().MaxSourcesPerTick
	}
	return &Engine{spread: spread, mature: mature, cfg: cfg}
}

func (e *Engine) Spread() *frontier.Engine { return e.spread }

// Cursor is the index into the sorted center list where the next cycle
// starts. It is persisted in snapshots so a resumed world keeps its
// rotation.
func (e *Engine) Cursor() int { return e.cursor }

func (e *Engine) SetCursor(c int) {
	if c < 0 {
		c = 0
	}
	e.cursor = c
}

type SourceReport struct {
	Center   voxel.Pos `json:"center"`
	Spread   bool      `json:"spread"`
	Matured  int       `json:"matured"`
	Pruned   int       `json:"pruned"`
	Frontier int       `json:"frontier"`
	Skipped  bool      `json:"skipped,omitempty"`
	Removed  bool      `json:"removed,omitempty"`
}

type TickReport struct {
	Tick    uint64         `json:"tick"`
	Sources []SourceReport `json:"sources"`
}

// Changed reports whether any processed source altered the world.
func (r TickReport) Changed() bool {
	for _, s := range r.Sources {
		if s.Spread || s.Matured > 0 {
			return true
		}
	}
	return false
}

// RegisterSource adds a source and replaces its seed frontier with one
// discovered from the blocks around it.
func (e *Engine) RegisterSource(w frontier.World, reg *registry.Registry, center voxel.Pos, strength int, tick uint64) (registry.Source, error) {
	src, err := reg.Register(center, strength)
	if err != nil {
		return registry.Source{}, err
	}
	reg.UpdateFrontier(center, e.spread.Discover(w, center, src.MaxRadius), tick)
	src, _ = reg.Get(center)
	return src, nil
}

func (e *Engine) RemoveSource(reg *registry.Registry, center voxel.Pos) error {
	if !reg.Remove(center) {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, center)
	}
	return nil
}

// ProcessTick runs one cycle over at most MaxSourcesPerTick sources,
// continuing where the previous cycle stopped.
func (e *Engine) ProcessTick(w frontier.World, reg *registry.Registry, tick uint64, r rng.Source) TickReport {
	rep := TickReport{Tick: tick}
	centers := reg.Centers()
	n := len(centers)
	if n == 0 {
		e.cursor = 0
		return rep
	}
	limit := e.cfg.MaxSourcesPerTick
	if limit > n {
		limit = n
	}
	start := e.cursor % n
	for i := 0; i < limit; i++ {
		rep.Sources = append(rep.Sources, e.processSource(w, reg, centers[(start+i)%n], tick, r))
	}
	e.cursor = (start + limit) % n
	return rep
}

func (e *Engine) processSource(w frontier.World, reg *registry.Registry, center voxel.Pos, tick uint64, r rng.Source) SourceReport {
	sr := SourceReport{Center: center}
	if !w.Loaded(center) {
		sr.Skipped = true
		return sr
	}
	if e.cfg.RequirePortal && !portal.HasPortalNear(w, center, e.cfg.ValidityHalfSize) {
		reg.Remove(center)
		sr.Removed = true
		return sr
	}
	src, ok := reg.Get(center)
	if !ok {
		sr.Skipped = true
		return sr
	}
	before := src.Frontier.Slice()
	sr.Pruned = e.spread.Prune(&src, w)
	sr.Spread = e.spread.SpreadOnce(&src, w, r)
	sr.Matured = e.mature.MatureRegion(&src, w, r)
	sr.Frontier = src.Frontier.Len()
	if sr.Spread || !slices.Equal(before, src.Frontier.Slice()) {
		reg.UpdateFrontier(center, src.Frontier, tick)
	}
	return sr
}

// TriggerBurst converts up to size voxels around the source at center in
// one go.
func (e *Engine) TriggerBurst(w frontier.World, reg *registry.Registry, center voxel.Pos, size int, tick uint64, r rng.Source) (int, error) {
	src, ok := reg.Get(center)
	if !ok {
		return 0, fmt.Errorf("%w: %s", registry.ErrNotFound, center)
	}
	before := src.Frontier.Slice()
	n := e.spread.Burst(&src, w, r, size)
	if n > 0 || !slices.Equal(before, src.Frontier.Slice()) {
		reg.UpdateFrontier(center, src.Frontier, tick)
	}
	return n, nil
}

// Arrival bursts the source nearest to pos when one lies within the
// trigger distance. The burst size scales with the source's strength.
func (e *Engine) Arrival(w frontier.World, reg *registry.Registry, pos voxel.Pos, tick uint64, r rng.Source) (voxel.Pos, int, bool) {
	src, ok := reg.Near(pos, e.cfg.BurstTriggerDistance)
	if !ok {
		return voxel.Pos{}, 0, false
	}
	n, err := e.TriggerBurst(w, reg, src.Center, src.Strength*e.cfg.BurstSizePerStrength, tick, r)
	if err != nil {
		return src.Center, 0, false
	}
	return src.Center, n, true
}
