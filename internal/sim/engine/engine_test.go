package engine

import (
	"context"
	"errors"
	"testing"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/frontier"
	"festering.ai/internal/sim/maturation"
	"festering.ai/internal/sim/portal"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rng"
	"festering.ai/internal/sim/rules"
	"festering.ai/internal/sim/simtest"
	"festering.ai/internal/sim/voxel"
)

func newEngine(cfg Config) *Engine {
	fe := frontier.New(rules.Default(), frontier.DefaultConfig())
	return New(fe, maturation.New(fe, maturation.DefaultConfig()), cfg)
}

func loose() Config {
	cfg := DefaultConfig()
	cfg.RequirePortal = false
	return cfg
}

func TestRegisterSource_DiscoversFrameEdge(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 63)
	lower := voxel.Pos{X: 0, Y: 65, Z: 0}
	portal.Build(g, lower, block.AxisX, 2, 3, 2)
	f, err := portal.Light(g, lower)
	if err != nil {
		t.Fatalf("light: %v", err)
	}
	reg := registry.New(registry.Config{})
	e := newEngine(DefaultConfig())

	src, err := e.RegisterSource(g, reg, f.Center(), f.Crying, 7)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if src.MaxRadius != 128 || src.LastUpdateTick != 7 {
		t.Fatalf("source: %+v", src)
	}
	if !src.Frontier.Has(voxel.Pos{X: 0, Y: 64, Z: 0}) {
		t.Fatalf("frame bottom missing from frontier %v", src.Frontier.Sorted())
	}
	if src.Frontier.Has(f.Center()) {
		t.Fatalf("portal interior should not be on the frontier")
	}

	if _, err := e.RegisterSource(g, reg, f.Center().Add(1, 0, 0), 1, 8); !errors.Is(err, registry.ErrTooClose) {
		t.Fatalf("second registration: got %v want ErrTooClose", err)
	}
}

func TestProcessTick_RoundRobinCap(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	reg := registry.New(registry.Config{})
	cfg := loose()
	cfg.MaxSourcesPerTick = 2
	e := newEngine(cfg)
	centers := []voxel.Pos{{X: 0, Y: 64}, {X: 200, Y: 64}, {X: 400, Y: 64}}
	for _, c := range centers {
		if _, err := e.RegisterSource(g, reg, c, 1, 0); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	r := rng.New(1)

	first := e.ProcessTick(g, reg, 20, r)
	second := e.ProcessTick(g, reg, 40, r)
	got := []voxel.Pos{}
	for _, rep := range append(first.Sources, second.Sources...) {
		got = append(got, rep.Center)
	}
	want := []voxel.Pos{centers[0], centers[1], centers[2], centers[0]}
	if len(got) != len(want) {
		t.Fatalf("processed %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed %v want %v", got, want)
		}
	}
	s, _ := reg.Get(centers[0])
	if s.LastUpdateTick != 40 {
		t.Fatalf("last tick: got %d want 40", s.LastUpdateTick)
	}
	s, _ = reg.Get(centers[1])
	if s.LastUpdateTick != 20 {
		t.Fatalf("last tick: got %d want 20", s.LastUpdateTick)
	}
}

func TestProcessTick_RemovesSourceWithoutPortal(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	reg := registry.New(registry.Config{})
	e := newEngine(DefaultConfig())
	c := voxel.Pos{Y: 64}
	if _, err := e.RegisterSource(g, reg, c, 1, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	rep := e.ProcessTick(g, reg, 20, rng.New(1))
	if len(rep.Sources) != 1 || !rep.Sources[0].Removed {
		t.Fatalf("report: %+v", rep)
	}
	if reg.Len() != 0 {
		t.Fatalf("source still registered")
	}
	if len(g.Writes) != 0 {
		t.Fatalf("removed source still wrote blocks")
	}
}

func TestProcessTick_SkipsUnloadedCenter(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	reg := registry.New(registry.Config{})
	e := newEngine(DefaultConfig())
	c := voxel.Pos{X: 1000, Y: 64}
	if _, err := e.RegisterSource(g, reg, c, 1, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	g.Unload(func(p voxel.Pos) bool { return p.X >= 1000 })
	rep := e.ProcessTick(g, reg, 20, rng.New(1))
	if len(rep.Sources) != 1 || !rep.Sources[0].Skipped {
		t.Fatalf("report: %+v", rep)
	}
	if reg.Len() != 1 {
		t.Fatalf("unloaded source was removed")
	}
}

func TestProcessTick_GrowsWithinRadius(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	reg := registry.New(registry.Config{RadiusPerStrength: 6})
	e := newEngine(loose())
	c := voxel.Pos{Y: 64}
	if _, err := e.RegisterSource(g, reg, c, 1, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	changed := false
	for tick := uint64(1); tick <= 100; tick++ {
		if e.ProcessTick(g, reg, tick, rng.ForTick(5, tick)).Changed() {
			changed = true
		}
	}
	if !changed || len(g.Writes) < 50 {
		t.Fatalf("too little growth: %d writes", len(g.Writes))
	}
	for _, w := range g.Writes {
		if !voxel.WithinRadius(c, w.Pos, 6) {
			t.Fatalf("write at %s outside radius", w.Pos)
		}
	}
	s, _ := reg.Get(c)
	for _, p := range s.Frontier.Slice() {
		if !s.Contains(p) {
			t.Fatalf("frontier member %s outside radius", p)
		}
	}
}

func TestTriggerBurst(t *testing.T) {
	g := simtest.Flat(block.GrassBlock, 64)
	reg := registry.New(registry.Config{})
	e := newEngine(loose())
	if _, err := e.TriggerBurst(g, reg, voxel.Pos{}, 5, 1, rng.New(1)); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("unknown source: got %v want ErrNotFound", err)
	}
	if err := e.RemoveSource(reg, voxel.Pos{}); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("remove unknown: got %v want ErrNotFound", err)
	}

	c := voxel.Pos{Y: 64}
	if _, err := e.RegisterSource(g, reg, c, 2, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	center, n, ok := e.Arrival(g, reg, voxel.Pos{X: 5, Y: 64}, 3, rng.New(2))
	if !ok || center != c || n != 10 {
		t.Fatalf("arrival: center %s n %d ok %v", center, n, ok)
	}
	s, _ := reg.Get(c)
	if s.Frontier.Len() < 2 || s.LastUpdateTick != 3 {
		t.Fatalf("burst not stored: %d members tick %d", s.Frontier.Len(), s.LastUpdateTick)
	}
	if _, _, ok := e.Arrival(g, reg, voxel.Pos{X: 50, Y: 64}, 4, rng.New(2)); ok {
		t.Fatalf("arrival 50 blocks away triggered a burst")
	}
}

func TestProcessTick_IdleCycleKeepsLastTick(t *testing.T) {
	g := simtest.Uniform(block.Air)
	reg := registry.New(registry.Config{})
	e := newEngine(loose())
	c := voxel.Pos{Y: 64}
	if _, err := e.RegisterSource(g, reg, c, 1, 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	// The first cycle prunes the seed member, which is a change.
	rep := e.ProcessTick(g, reg, 20, rng.New(1))
	if rep.Changed() || rep.Sources[0].Pruned != 1 {
		t.Fatalf("first cycle: %+v", rep)
	}
	s, _ := reg.Get(c)
	if s.LastUpdateTick != 20 || s.Frontier.Len() != 0 {
		t.Fatalf("after first cycle: tick %d frontier %d", s.LastUpdateTick, s.Frontier.Len())
	}
	if err := reg.Save(context.Background(), &registry.MemoryStore{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	e.ProcessTick(g, reg, 40, rng.New(2))
	s, _ = reg.Get(c)
	if s.LastUpdateTick != 20 {
		t.Fatalf("idle cycle moved last tick to %d", s.LastUpdateTick)
	}
	if reg.Dirty() {
		t.Fatalf("idle cycle marked the registry dirty")
	}
}
