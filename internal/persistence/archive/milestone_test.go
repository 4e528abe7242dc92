package archive

import (
	"os"
	"path/filepath"
	"testing"

	"festering.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, worldDir string) string {
	t.Helper()
	src := filepath.Join(worldDir, "snapshots", "snap.snap.zst")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	if err := os.WriteFile(src, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	return src
}

func TestArchiveMilestone_CopiesMilestoneSnapshot(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "w1")
	src := writeDummy(t, worldDir)

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 200},
		Seed:   42,
		Sources: []snapshot.SourceV1{
			{Center: [3]int{1, 73, 0}, Strength: 2, Frontier: [][3]int{{1, 70, 0}, {2, 70, 0}}},
		},
	}
	milestone, archivedPath, ok, err := ArchiveMilestone(worldDir, src, snap, 100)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || milestone != 2 {
		t.Fatalf("got milestone=%d archived=%v want 2 true", milestone, ok)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != "dummy" {
		t.Fatalf("archived content: got %q", got)
	}
	meta, err := ReadMeta(archivedPath)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Sources != 1 || meta.Frontier != 2 || meta.Tick != 200 {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestArchiveMilestone_SkipsOtherTicks(t *testing.T) {
	worldDir := t.TempDir()
	src := writeDummy(t, worldDir)
	for _, tc := range []struct {
		tick, every uint64
	}{{150, 100}, {0, 100}, {100, 0}} {
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Tick: tc.tick}}
		if _, _, ok, err := ArchiveMilestone(worldDir, src, snap, tc.every); ok || err != nil {
			t.Fatalf("tick=%d every=%d: archived=%v err=%v", tc.tick, tc.every, ok, err)
		}
	}
	if _, err := os.Stat(filepath.Join(worldDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archives dir created for non-milestones")
	}
}
