package worldtest

import (
	"testing"

	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/portal"
	"festering.ai/internal/sim/voxel"
	world "festering.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Ignite()/Register()/Burst() issue requests via StepOnce()
// - Step()/StepN() advance the world with an empty batch
// - SetBlock/BuildPortal/Platform use the Debug* helpers for preconditions
//
// It avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	// Digests holds the digest of every tick stepped through the harness.
	Digests []string
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return &Harness{T: t, W: w}
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
func NewHarnessWithWorld(t *testing.T, w *world.World) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	return &Harness{T: t, W: w}
}

func (h *Harness) stepBatch(b world.Batch) {
	_, d := h.W.StepOnce(b)
	h.Digests = append(h.Digests, d)
}

func (h *Harness) Step() string {
	h.T.Helper()
	h.stepBatch(world.Batch{})
	return h.Digests[len(h.Digests)-1]
}

func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.stepBatch(world.Batch{})
	}
}

func (h *Harness) Ignite(pos voxel.Pos) world.IgniteResponse {
	h.T.Helper()
	resp := make(chan world.IgniteResponse, 1)
	h.stepBatch(world.Batch{Ignites: []world.IgniteRequest{{Pos: pos, Resp: resp}}})
	return <-resp
}

func (h *Harness) Register(center voxel.Pos, strength int) world.SourceResponse {
	h.T.Helper()
	resp := make(chan world.SourceResponse, 1)
	h.stepBatch(world.Batch{Registers: []world.RegisterRequest{{Center: center, Strength: strength, Resp: resp}}})
	return <-resp
}

func (h *Harness) Burst(center voxel.Pos, size int) world.BurstResponse {
	h.T.Helper()
	resp := make(chan world.BurstResponse, 1)
	h.stepBatch(world.Batch{Bursts: []world.BurstRequest{{Center: center, Size: size, Resp: resp}}})
	return <-resp
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) SetBlock(pos voxel.Pos, blockName string) {
	h.T.Helper()
	if err := h.W.DebugSetBlock(pos, blockName); err != nil {
		h.T.Fatalf("DebugSetBlock: %v", err)
	}
}

func (h *Harness) Block(pos voxel.Pos) block.State {
	h.T.Helper()
	st, err := h.W.DebugGetBlock(pos)
	if err != nil {
		h.T.Fatalf("DebugGetBlock: %v", err)
	}
	return st
}

// Platform levels a grass plateau with its top at y across the given
// horizontal square and clears the sky above it.
func (h *Harness) Platform(y, half int) {
	h.T.Helper()
	for x := -half; x <= half; x++ {
		for z := -half; z <= half; z++ {
			h.SetBlock(voxel.Pos{X: x, Y: y - 1, Z: z}, string(block.Dirt))
			h.SetBlock(voxel.Pos{X: x, Y: y, Z: z}, string(block.GrassBlock))
			for up := y + 1; up < y+20; up++ {
				h.SetBlock(voxel.Pos{X: x, Y: up, Z: z}, string(block.Air))
			}
		}
	}
}

// BuildPortal places an unlit frame through the debug API.
func (h *Harness) BuildPortal(lower voxel.Pos, axis block.Axis, width, height, crying int) {
	h.T.Helper()
	portal.Build(debugStore{h}, lower, axis, width, height, crying)
}

type debugStore struct{ h *Harness }

func (s debugStore) Block(p voxel.Pos) block.State { return s.h.Block(p) }

func (s debugStore) SetBlock(p voxel.Pos, st block.State) { s.h.SetBlock(p, st.String()) }
