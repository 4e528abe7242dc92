package worldtest

import (
	"testing"

	world "festering.ai/internal/sim/world"
)

func TestSnapshotExportImport_RoundTripDigest(t *testing.T) {
	cfg := testConfig()
	h := ignitedHarness(t, cfg)
	h.StepN(30)

	snapTick, snap := h.Snapshot()
	d1 := h.W.DebugStateDigest(snapTick)
	if d1 != h.Digests[len(h.Digests)-1] {
		t.Fatalf("debug digest differs from step digest")
	}

	w2, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := w2.CurrentTick(), snapTick+1; got != want {
		t.Fatalf("tick after import: got %d want %d", got, want)
	}
	if d2 := w2.DebugStateDigest(snapTick); d1 != d2 {
		t.Fatalf("digest mismatch after import: %s vs %s", d1, d2)
	}
	if got := len(world.SourceRecords(snap)); got != 1 {
		t.Fatalf("snapshot sources: got %d want 1", got)
	}
}

func TestSnapshotImport_ResumesLikeTheOriginal(t *testing.T) {
	cfg := testConfig()
	h := ignitedHarness(t, cfg)
	h.StepN(50)
	_, snap := h.Snapshot()

	resume := func() *Harness {
		w, err := world.New(cfg)
		if err != nil {
			t.Fatalf("world.New: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			t.Fatalf("import: %v", err)
		}
		return NewHarnessWithWorld(t, w)
	}
	a, b := resume(), resume()
	h.Digests = h.Digests[:0]
	for _, x := range []*Harness{h, a, b} {
		x.StepN(80)
	}
	for i := range h.Digests {
		if a.Digests[i] != h.Digests[i] || b.Digests[i] != h.Digests[i] {
			t.Fatalf("resumed world diverged at step %d", i)
		}
	}
}
