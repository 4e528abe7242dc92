// Package archive keeps long-lived copies of snapshots taken on milestone
// ticks, outside the rolling snapshots directory.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"festering.ai/internal/persistence/snapshot"
)

type MilestoneMeta struct {
	Milestone  int    `json:"milestone"`
	Tick       uint64 `json:"tick"`
	Seed       int64  `json:"seed"`
	Snapshot   string `json:"snapshot"`
	Sources    int    `json:"sources"`
	Frontier   int    `json:"frontier_voxels"`
	Chunks     int    `json:"chunks"`
	CreatedAt  string `json:"created_at"`
	EveryTicks uint64 `json:"every_ticks"`
}

// ArchiveMilestone copies snapshotPath into
// <worldDir>/archives/milestone_<NNNN>/ when snap was taken on a multiple of
// everyTicks. It returns the milestone number and the archived path, with
// archived=false when the snapshot is not a milestone.
func ArchiveMilestone(worldDir, snapshotPath string, snap snapshot.SnapshotV1, everyTicks uint64) (milestone int, archivedPath string, archived bool, err error) {
	if everyTicks == 0 || snap.Header.Tick == 0 || snap.Header.Tick%everyTicks != 0 {
		return 0, "", false, nil
	}
	milestone = int(snap.Header.Tick / everyTicks)

	dir := filepath.Join(worldDir, "archives", fmt.Sprintf("milestone_%04d", milestone))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	frontier := 0
	for _, s := range snap.Sources {
		frontier += len(s.Frontier)
	}
	meta := MilestoneMeta{
		Milestone:  milestone,
		Tick:       snap.Header.Tick,
		Seed:       snap.Seed,
		Snapshot:   filepath.Base(dst),
		Sources:    len(snap.Sources),
		Frontier:   frontier,
		Chunks:     len(snap.Chunks),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		EveryTicks: everyTicks,
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return 0, "", false, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return 0, "", false, err
	}
	return milestone, dst, true, nil
}

// ReadMeta loads the meta.json written next to an archived snapshot.
func ReadMeta(archivedPath string) (MilestoneMeta, error) {
	var m MilestoneMeta
	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
