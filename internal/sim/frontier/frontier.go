// Package frontier grows a source's corrupted region one neighbor at a time.
//
// A frontier is the set of corrupted voxels that may still have something
// transformable next to them. Spreading picks a member, tries its neighbors
// and adds whatever it converted. Members that can no longer spread are
// pruned lazily, after an attempt from them comes up empty.
package frontier

import (
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rng"
	"festering.ai/internal/sim/rules"
	"festering.ai/internal/sim/voxel"
)

// World is the block store as the engine sees it.
type World interface {
	Block(p voxel.Pos) block.State
	SetBlock(p voxel.Pos, s block.State)
	Loaded(p voxel.Pos) bool
}

type Cause string

const (
	CauseSpread      Cause = "spread"
	CauseContainment Cause = "containment"
	CauseMature      Cause = "mature"
	CauseVegetation  Cause = "vegetation"
)

// Change describes one voxel write made on behalf of a source.
type Change struct {
	Source voxel.Pos
	Pos    voxel.Pos
	From   block.State
	To     block.State
	Cause  Cause
}

// WeightedBlock is one entry of a weighted material pick.
type WeightedBlock struct {
	ID     block.ID
	Weight float64
}

// MaxBurstSize caps the conversions of a single burst.
const MaxBurstSize = 4096

type Config struct {
	SpreadAttempts       int
	DiscoveryBudget      int
	MaxDepthBelowSurface int
	SurfaceScanSlack     int
	BurstAttemptFactor   int
	SpreadVertically     bool
	TransformLiquid      bool
	WallMaterials        []WeightedBlock
}

func DefaultConfig() Config {
	return Config{
		SpreadAttempts:       3,
		DiscoveryBudget:      50000,
		MaxDepthBelowSurface: 4,
		SurfaceScanSlack:     10,
		BurstAttemptFactor:   10,
		SpreadVertically:     true,
		TransformLiquid:      true,
		WallMaterials: []WeightedBlock{
			{ID: block.Stone, Weight: 0.4},
			{ID: block.Cobblestone, Weight: 0.3},
			{ID: block.Obsidian, Weight: 0.3},
		},
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.SpreadAttempts <= 0 {
		c.SpreadAttempts = d.SpreadAttempts
	}
	if c.DiscoveryBudget <= 0 {
		c.DiscoveryBudget = d.DiscoveryBudget
	}
	if c.MaxDepthBelowSurface < 0 {
		c.MaxDepthBelowSurface = d.MaxDepthBelowSurface
	}
	if c.SurfaceScanSlack < 0 {
		c.SurfaceScanSlack = d.SurfaceScanSlack
	}
	if c.BurstAttemptFactor <= 0 {
		c.BurstAttemptFactor = d.BurstAttemptFactor
	}
	if len(c.WallMaterials) == 0 {
		c.WallMaterials = d.WallMaterials
	}
}

type Engine struct {
	rules    *rules.Table
	cfg      Config
	dirs     []voxel.Dir
	onChange func(Change)
}

func New(t *rules.Table, cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{rules: t, cfg: cfg}
	if cfg.SpreadVertically {
		e.dirs = voxel.Faces[:]
	} else {
		e.dirs = voxel.Horizontals[:]
	}
	return e
}

func (e *Engine) Config() Config      { return e.cfg }
func (e *Engine) Rules() *rules.Table { return e.rules }

// OnChange installs a hook called after every write the engine makes.
func (e *Engine) OnChange(fn func(Change)) { e.onChange = fn }

// Write sets a block and reports it to the change hook. A write the world
// drops, such as one outside its height range, is not reported, and Write
// returns false.
func (e *Engine) Write(w World, src voxel.Pos, p voxel.Pos, to block.State, cause Cause) bool {
	from := w.Block(p)
	w.SetBlock(p, to)
	if w.Block(p) != to {
		return false
	}
	if e.onChange != nil {
		e.onChange(Change{Source: src, Pos: p, From: from, To: to, Cause: cause})
	}
	return true
}

// Discover rebuilds a frontier by walking the corrupted region around
// center. The walk passes only through corrupted and marker voxels and
// stops after the configured number of visits. It never returns an empty
// set: when nothing qualifies the result is {center}.
func (e *Engine) Discover(w World, center voxel.Pos, maxRadius int) *voxel.Set {
	out := voxel.NewSet()
	visited := map[voxel.Pos]bool{center: true}
	queue := []voxel.Pos{center}
	explored := 0
	for head := 0; head < len(queue) && explored < e.cfg.DiscoveryBudget; head++ {
		p := queue[head]
		explored++
		if !voxel.WithinRadius(center, p, maxRadius) || !w.Loaded(p) {
			continue
		}
		st := w.Block(p)
		if !e.rules.IsAlreadyCorrupted(st) && !e.rules.IsMarker(st) {
			continue
		}
		if e.hasLoadedEligibleNeighbor(w, center, maxRadius, p) {
			out.Add(p)
		}
		for _, d := range voxel.Faces {
			n := p.Offset(d)
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	if out.Len() == 0 {
		out.Add(center)
	}
	return out
}

func (e *Engine) hasLoadedEligibleNeighbor(w World, center voxel.Pos, radius int, p voxel.Pos) bool {
	for _, d := range e.dirs {
		n := p.Offset(d)
		if !voxel.WithinRadius(center, n, radius) || !w.Loaded(n) {
			continue
		}
		if e.rules.Eligible(w.Block(n)) {
			return true
		}
	}
	return false
}

// CanSpread reports whether p still has an in-radius neighbor that could be
// transformed. An unloaded neighbor counts, since it may hold anything.
func (e *Engine) CanSpread(src *registry.Source, w World, p voxel.Pos) bool {
	for _, d := range e.dirs {
		n := p.Offset(d)
		if !src.Contains(n) {
			continue
		}
		if !w.Loaded(n) {
			return true
		}
		if e.rules.Eligible(w.Block(n)) {
			return true
		}
	}
	return false
}

// Prune drops members outside the radius or with nothing left to spread
// into. It returns the number removed.
func (e *Engine) Prune(src *registry.Source, w World) int {
	removed := 0
	for _, p := range src.Frontier.Slice() {
		if !src.Contains(p) || !e.CanSpread(src, w, p) {
			src.Frontier.Remove(p)
			removed++
		}
	}
	return removed
}

func (e *Engine) reseed(src *registry.Source, w World) {
	src.Frontier = e.Discover(w, src.Center, src.MaxRadius)
}

// SpreadOnce makes the configured number of spread attempts. An empty
// frontier is rediscovered once, before the first attempt. Each attempt
// starts from a member that was in the frontier when the call began and has
// not been pruned since; the call ends early when none is left. It reports
// whether any voxel was converted.
func (e *Engine) SpreadOnce(src *registry.Source, w World, r rng.Source) bool {
	if src.Frontier == nil {
		src.Frontier = voxel.NewSet()
	}
	if src.Frontier.Len() == 0 {
		e.reseed(src, w)
	}
	candidates := src.Frontier.Slice()
	changed := false
	for a := 0; a < e.cfg.SpreadAttempts; a++ {
		live := candidates[:0:0]
		for _, p := range candidates {
			if src.Frontier.Has(p) {
				live = append(live, p)
			}
		}
		if len(live) == 0 {
			break
		}
		from := live[r.Intn(len(live))]
		if e.attempt(src, w, r, from, true) {
			changed = true
		}
		if !e.CanSpread(src, w, from) {
			src.Frontier.Remove(from)
		}
	}
	return changed
}

// Burst performs up to size conversions, giving up after
// size*BurstAttemptFactor attempts. Sources are drawn from the live
// frontier and neighbors are tried in fixed order.
func (e *Engine) Burst(src *registry.Source, w World, r rng.Source, size int) int {
	if size <= 0 {
		return 0
	}
	if size > MaxBurstSize {
		size = MaxBurstSize
	}
	if src.Frontier == nil || src.Frontier.Len() == 0 {
		e.reseed(src, w)
	}
	done := 0
	maxAttempts := size * e.cfg.BurstAttemptFactor
	for a := 0; a < maxAttempts && done < size; a++ {
		if src.Frontier.Len() == 0 {
			break
		}
		from := src.Frontier.At(r.Intn(src.Frontier.Len()))
		if e.attempt(src, w, r, from, false) {
			done++
		}
		if !e.CanSpread(src, w, from) {
			src.Frontier.Remove(from)
		}
	}
	return done
}

func (e *Engine) attempt(src *registry.Source, w World, r rng.Source, from voxel.Pos, shuffle bool) bool {
	dirs := make([]voxel.Dir, len(e.dirs))
	copy(dirs, e.dirs)
	if shuffle {
		rng.Shuffle(r, len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	}
	for _, d := range dirs {
		to := from.Offset(d)
		if !src.Contains(to) || !w.Loaded(to) {
			continue
		}
		cur := w.Block(to)
		if cur.ID == block.Water && e.cfg.TransformLiquid {
			if !e.WithinDepthLimit(w, to) {
				continue
			}
			if e.ContainLiquid(src, w, r, to) {
				return true
			}
			continue
		}
		if e.rules.IsImmune(cur) || !e.WithinDepthLimit(w, to) {
			continue
		}
		next, ok := e.rules.Transform(cur, r)
		if !ok || next == cur {
			continue
		}
		if !e.Write(w, src.Center, to, next, CauseSpread) {
			continue
		}
		src.Frontier.Add(to)
		return true
	}
	return false
}

// WithinDepthLimit reports whether p is at most MaxDepthBelowSurface voxels
// under the nearest surface above it. The surface is the first voxel going
// up that is air or lets light through.
func (e *Engine) WithinDepthLimit(w World, p voxel.Pos) bool {
	check := p.Up()
	limit := e.cfg.MaxDepthBelowSurface + e.cfg.SurfaceScanSlack
	for depth := 0; depth <= limit; depth++ {
		st := w.Block(check)
		if st.IsAir() || !block.Opaque(st.ID) {
			return depth <= e.cfg.MaxDepthBelowSurface
		}
		check = check.Up()
	}
	return false
}

// ContainLiquid turns the water at p into lava held in a pocket: the floor
// and any open or watery sides become wall material first. It fails when
// water sits on top, since the pocket could not be sealed.
func (e *Engine) ContainLiquid(src *registry.Source, w World, r rng.Source, p voxel.Pos) bool {
	if w.Block(p.Up()).ID == block.Water {
		return false
	}
	floor := p.Down()
	if e.writable(src, w, floor) {
		fs := w.Block(floor)
		if (fs.ID == block.Water || !block.Solid(fs.ID)) && (fs.IsAir() || !e.rules.IsImmune(fs)) {
			e.Write(w, src.Center, floor, block.Of(e.wallMaterial(r)), CauseContainment)
		}
	}
	for _, d := range voxel.Horizontals {
		side := p.Offset(d)
		if !e.writable(src, w, side) {
			continue
		}
		ss := w.Block(side)
		if ss.ID == block.Water || ss.IsAir() {
			e.Write(w, src.Center, side, block.Of(e.wallMaterial(r)), CauseContainment)
		}
	}
	if !e.Write(w, src.Center, p, block.Of(block.Lava), CauseContainment) {
		return false
	}
	src.Frontier.Add(p)
	return true
}

func (e *Engine) writable(src *registry.Source, w World, p voxel.Pos) bool {
	return src.Contains(p) && w.Loaded(p)
}

func (e *Engine) wallMaterial(r rng.Source) block.ID {
	total := 0.0
	for _, m := range e.cfg.WallMaterials {
		total += m.Weight
	}
	x := r.Float64() * total
	for _, m := range e.cfg.WallMaterials {
		if x < m.Weight {
			return m.ID
		}
		x -= m.Weight
	}
	return e.cfg.WallMaterials[len(e.cfg.WallMaterials)-1].ID
}
