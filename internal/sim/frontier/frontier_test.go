package frontier

import (
	"testing"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rng"
	"festering.ai/internal/sim/rules"
	"festering.ai/internal/sim/simtest"
	"festering.ai/internal/sim/voxel"
)

func newSource(center voxel.Pos, radius int) *registry.Source {
	return &registry.Source{Center: center, Strength: 1, MaxRadius: radius, Frontier: voxel.NewSet(center)}
}

func newEngine() *Engine { return New(rules.Default(), DefaultConfig()) }

func adjacent(a, b voxel.Pos) bool { return voxel.DistSq(a, b) == 1 }

func TestSpreadOnce_GrowsFromOrigin(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	origin := voxel.Pos{X: 0, Y: 64, Z: 0}
	src := newSource(origin, 64)

	if !newEngine().SpreadOnce(src, g, rng.New(1)) {
		t.Fatalf("expected a transformation")
	}
	if n := src.Frontier.Len(); n < 2 || n > 4 {
		t.Fatalf("frontier size: got %d want 2..4", n)
	}
	if !src.Frontier.Has(origin) {
		t.Fatalf("origin should still be able to spread")
	}
	for _, p := range src.Frontier.Slice() {
		if p != origin && !adjacent(p, origin) {
			t.Fatalf("member %s not adjacent to origin", p)
		}
	}
	for _, w := range g.Writes {
		if w.From.ID != block.GrassBlock {
			t.Fatalf("unexpected overwrite of %s at %s", w.From, w.Pos)
		}
	}
}

func TestSpreadOnce_ImmuneBoundary(t *testing.T) {
	g := simtest.Uniform(block.Air)
	origin := voxel.Pos{X: 0, Y: 0, Z: 0}
	g.Put(origin, block.Netherrack)
	for _, d := range voxel.Faces {
		g.Put(origin.Offset(d), block.Obsidian)
	}
	src := newSource(origin, 64)

	if newEngine().SpreadOnce(src, g, rng.New(7)) {
		t.Fatalf("spread through an immune shell")
	}
	if len(g.Writes) != 0 {
		t.Fatalf("writes: got %d want 0", len(g.Writes))
	}
	if src.Frontier.Has(origin) {
		t.Fatalf("enclosed origin should be pruned")
	}
}

func TestContainLiquid_SealsPocket(t *testing.T) {
	g := simtest.Uniform(block.Air)
	p := voxel.Pos{X: 0, Y: 10, Z: 0}
	g.Put(p, block.Water)
	g.Put(p.Down(), block.Water)
	src := newSource(voxel.Pos{X: 0, Y: 12, Z: 0}, 64)
	src.Frontier = voxel.NewSet()

	if !newEngine().ContainLiquid(src, g, rng.New(3), p) {
		t.Fatalf("containment refused")
	}
	if got := g.Block(p).ID; got != block.Lava {
		t.Fatalf("center: got %s want LAVA", got)
	}
	if got := g.Block(p.Down()).ID; !block.Solid(got) {
		t.Fatalf("floor %s is not solid", got)
	}
	for _, d := range voxel.Horizontals {
		if got := g.Block(p.Offset(d)).ID; !block.Solid(got) {
			t.Fatalf("side %s is %s", d, got)
		}
	}
	if !src.Frontier.Has(p) {
		t.Fatalf("pocket not added to frontier")
	}
}

func TestContainLiquid_RefusesSubmerged(t *testing.T) {
	g := simtest.Uniform(block.Water)
	p := voxel.Pos{X: 0, Y: 10, Z: 0}
	src := newSource(p, 64)
	if newEngine().ContainLiquid(src, g, rng.New(3), p) {
		t.Fatalf("contained water with water on top")
	}
	if len(g.Writes) != 0 {
		t.Fatalf("writes: got %d want 0", len(g.Writes))
	}
}

func TestSpreadOnce_ConvertsSurfaceWater(t *testing.T) {
	g := simtest.Uniform(block.Air)
	p := voxel.Pos{X: 5, Y: 10, Z: 5}
	g.Put(p, block.Water)
	member := p.Up()
	g.Put(member, block.Netherrack)
	src := newSource(member, 64)

	if !newEngine().SpreadOnce(src, g, rng.New(11)) {
		t.Fatalf("expected the water below to convert")
	}
	if got := g.Block(p).ID; got != block.Lava {
		t.Fatalf("water: got %s want LAVA", got)
	}
	for _, d := range voxel.Horizontals {
		if got := g.Block(p.Offset(d)).ID; !block.Solid(got) {
			t.Fatalf("side %s is %s", d, got)
		}
	}
}

func TestSpreadOnce_LiquidConversionDisabled(t *testing.T) {
	g := simtest.Uniform(block.Air)
	p := voxel.Pos{X: 5, Y: 10, Z: 5}
	g.Put(p, block.Water)
	g.Put(p.Up(), block.Netherrack)
	cfg := DefaultConfig()
	cfg.TransformLiquid = false
	src := newSource(p.Up(), 64)

	if New(rules.Default(), cfg).SpreadOnce(src, g, rng.New(11)) {
		t.Fatalf("water converted with conversion disabled")
	}
	if g.Block(p).ID != block.Water {
		t.Fatalf("water changed")
	}
}

func TestDiscover_FallsBackToCenter(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 3, Y: 64, Z: -2}
	got := newEngine().Discover(g, center, 64)
	if got.Len() != 1 || !got.Has(center) {
		t.Fatalf("discover: got %v want {%s}", got.Slice(), center)
	}
}

func TestDiscover_FindsEdgeOfCorruptedRegion(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 0, Y: 64, Z: 0}
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				g.Put(center.Add(x, y, z), block.Netherrack)
			}
		}
	}
	got := newEngine().Discover(g, center, 64)
	if got.Has(center) {
		t.Fatalf("fully enclosed center should not be on the frontier")
	}
	for _, want := range []voxel.Pos{center.Add(1, 0, 0), center.Add(0, -1, 0), center.Add(-1, -1, -1)} {
		if !got.Has(want) {
			t.Fatalf("missing %s in %v", want, got.Sorted())
		}
	}
	for _, p := range got.Slice() {
		if g.Block(p).ID != block.Netherrack {
			t.Fatalf("non-corrupted member %s", p)
		}
	}
}

func TestDiscover_RespectsBudget(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 0, Y: 64, Z: 0}
	for x := 0; x < 10; x++ {
		g.Put(center.Add(x, 0, 0), block.Netherrack)
	}
	cfg := DefaultConfig()
	cfg.DiscoveryBudget = 1
	got := New(rules.Default(), cfg).Discover(g, center, 64)
	if got.Len() != 1 || !got.Has(center) {
		t.Fatalf("budget 1: got %v", got.Sorted())
	}
}

func TestPrune_Idempotent(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 0, Y: 64, Z: 0}
	src := newSource(center, 8)
	enclosed := voxel.Pos{X: 0, Y: 60, Z: 0}
	for _, d := range voxel.Faces {
		g.Put(enclosed.Offset(d), block.Bedrock)
	}
	src.Frontier.Add(enclosed)
	src.Frontier.Add(voxel.Pos{X: 50, Y: 64, Z: 0})
	src.Frontier.Add(voxel.Pos{X: 1, Y: 64, Z: 0})

	e := newEngine()
	if removed := e.Prune(src, g); removed != 2 {
		t.Fatalf("first prune removed %d want 2", removed)
	}
	before := src.Frontier.Clone()
	if removed := e.Prune(src, g); removed != 0 {
		t.Fatalf("second prune removed %d", removed)
	}
	if !before.Equal(src.Frontier) {
		t.Fatalf("frontier changed on second prune")
	}
}

func TestPrune_KeepsMemberNextToUnloaded(t *testing.T) {
	g := simtest.Uniform(block.Air)
	p := voxel.Pos{X: 15, Y: 10, Z: 0}
	g.Put(p, block.Netherrack)
	g.Unload(func(q voxel.Pos) bool { return q.X >= 16 })
	src := newSource(p, 64)

	if removed := newEngine().Prune(src, g); removed != 0 {
		t.Fatalf("member beside unloaded space pruned")
	}
	g.Unload(nil)
	if removed := newEngine().Prune(src, g); removed != 1 {
		t.Fatalf("member with only air around kept")
	}
}

func TestSpread_StaysWithinRadius(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 0, Y: 64, Z: 0}
	src := newSource(center, 3)
	e := newEngine()
	r := rng.New(42)
	for i := 0; i < 200; i++ {
		e.SpreadOnce(src, g, r)
	}
	e.Burst(src, g, r, 50)
	if len(g.Writes) == 0 {
		t.Fatalf("nothing spread")
	}
	for _, w := range g.Writes {
		if !voxel.WithinRadius(center, w.Pos, 3) {
			t.Fatalf("write at %s outside radius", w.Pos)
		}
	}
	for _, p := range src.Frontier.Slice() {
		if !src.Contains(p) {
			t.Fatalf("frontier member %s outside radius", p)
		}
	}
}

func TestSpread_NeverOverwritesImmune(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 0, Y: 64, Z: 0}
	for x := -6; x <= 6; x += 3 {
		g.Put(voxel.Pos{X: x, Y: 64, Z: 2}, block.Obsidian)
		g.Put(voxel.Pos{X: x, Y: 63, Z: -2}, block.Bedrock)
		g.Put(voxel.Pos{X: x, Y: 64, Z: -3}, block.CryingObsidian)
	}
	tbl := rules.Default()
	e := New(tbl, DefaultConfig())
	src := newSource(center, 8)
	r := rng.New(5)
	for i := 0; i < 300; i++ {
		e.SpreadOnce(src, g, r)
	}
	for _, w := range g.Writes {
		if tbl.IsImmune(w.From) {
			t.Fatalf("overwrote immune %s at %s", w.From, w.Pos)
		}
	}
}

func TestSpread_HorizontalOnly(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	center := voxel.Pos{X: 0, Y: 64, Z: 0}
	cfg := DefaultConfig()
	cfg.SpreadVertically = false
	e := New(rules.Default(), cfg)
	src := newSource(center, 16)
	r := rng.New(9)
	for i := 0; i < 50; i++ {
		e.SpreadOnce(src, g, r)
	}
	for _, w := range g.Writes {
		if w.Pos.Y != center.Y {
			t.Fatalf("vertical write at %s", w.Pos)
		}
	}
}

func TestWithinDepthLimit(t *testing.T) {
	g := simtest.Flat(block.Stone, 64)
	e := newEngine()
	if !e.WithinDepthLimit(g, voxel.Pos{X: 0, Y: 60, Z: 0}) {
		t.Fatalf("4 below surface should be allowed")
	}
	if e.WithinDepthLimit(g, voxel.Pos{X: 0, Y: 59, Z: 0}) {
		t.Fatalf("5 below surface should be refused")
	}
	if e.WithinDepthLimit(g, voxel.Pos{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("deep stone should be refused")
	}
}

func TestBurst_CountsSuccesses(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	src := newSource(voxel.Pos{X: 0, Y: 64, Z: 0}, 64)
	var changes int
	e := newEngine()
	e.OnChange(func(Change) { changes++ })

	if got := e.Burst(src, g, rng.New(2), 5); got != 5 {
		t.Fatalf("burst: got %d want 5", got)
	}
	if changes != 5 || len(g.Writes) != 5 {
		t.Fatalf("changes: hook %d writes %d want 5", changes, len(g.Writes))
	}
}

func TestBurst_StopsWhenEnclosed(t *testing.T) {
	g := simtest.Uniform(block.Air)
	origin := voxel.Pos{}
	g.Put(origin, block.Netherrack)
	src := newSource(origin, 64)
	if got := newEngine().Burst(src, g, rng.New(2), 4); got != 0 {
		t.Fatalf("burst in empty space: got %d", got)
	}
}

func TestSpreadOnce_SeededRunsAgree(t *testing.T) {
	run := func() []simtest.Write {
		g := simtest.Flat(block.GrassBlock, 64)
		src := newSource(voxel.Pos{X: 0, Y: 64, Z: 0}, 16)
		e := newEngine()
		r := rng.New(99)
		for i := 0; i < 40; i++ {
			e.SpreadOnce(src, g, r)
		}
		return g.Writes
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("write counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("write %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSpreadOnce_ImmuneBoundaryInGround(t *testing.T) {
	origin := voxel.Pos{X: 0, Y: 62, Z: 0}
	for seed := int64(1); seed <= 5; seed++ {
		g := simtest.Flat(block.GrassBlock, 64)
		g.Put(origin, block.Netherrack)
		for _, d := range voxel.Faces {
			g.Put(origin.Offset(d), block.Obsidian)
		}
		src := newSource(origin, 64)
		e := newEngine()

		if e.SpreadOnce(src, g, rng.New(seed)) {
			t.Fatalf("seed %d: spread through an immune shell", seed)
		}
		if len(g.Writes) != 0 || src.Frontier.Len() != 0 {
			t.Fatalf("seed %d: writes %d frontier %v", seed, len(g.Writes), src.Frontier.Sorted())
		}

		// The next cycle rediscovers the shell and grows past it.
		if !e.SpreadOnce(src, g, rng.New(seed)) {
			t.Fatalf("seed %d: empty frontier was not rediscovered", seed)
		}
	}
}

// ceilingGrid drops writes at or above y=top like a bounded chunk store.
type ceilingGrid struct {
	*simtest.Grid
	top int
}

func (g ceilingGrid) SetBlock(p voxel.Pos, s block.State) {
	if p.Y >= g.top {
		return
	}
	g.Grid.SetBlock(p, s)
}

func (g ceilingGrid) Block(p voxel.Pos) block.State {
	if p.Y >= g.top {
		return block.Of(block.Air)
	}
	return g.Grid.Block(p)
}

func TestWrite_DroppedWriteIsNotReported(t *testing.T) {
	g := ceilingGrid{Grid: simtest.Uniform(block.Air), top: 10}
	e := newEngine()
	var changes []Change
	e.OnChange(func(c Change) { changes = append(changes, c) })

	if e.Write(g, voxel.Pos{}, voxel.Pos{Y: 10}, block.Of(block.Stone), CauseContainment) {
		t.Fatalf("write above the ceiling reported success")
	}
	if len(changes) != 0 {
		t.Fatalf("dropped write reached the hook: %+v", changes)
	}
	if !e.Write(g, voxel.Pos{}, voxel.Pos{Y: 9}, block.Of(block.Stone), CauseContainment) || len(changes) != 1 {
		t.Fatalf("write below the ceiling: changes %+v", changes)
	}
}

func TestBurst_CapsSize(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	src := newSource(voxel.Pos{X: 0, Y: 64, Z: 0}, 64)
	got := newEngine().Burst(src, g, rng.New(4), MaxBurstSize*100)
	if got == 0 || got > MaxBurstSize || len(g.Writes) > MaxBurstSize {
		t.Fatalf("burst: got %d writes %d cap %d", got, len(g.Writes), MaxBurstSize)
	}
}
