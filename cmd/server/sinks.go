package main

import (
	"context"
	"log"
	"time"

	"festering.ai/internal/persistence/archive"
	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/world"
)

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(e world.TickLogEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteTick(e)
	}
	if m.b != nil {
		if err2 := m.b.WriteTick(e); err == nil {
			err = err2
		}
	}
	return err
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(e world.AuditEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteAudit(e)
	}
	if m.b != nil {
		if err2 := m.b.WriteAudit(e); err == nil {
			err = err2
		}
	}
	return err
}

// snapshotIndex is the part of the sqlite index the snapshot writer feeds.
type snapshotIndex interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordMilestone(milestone int, tick uint64, archivedSnapshotPath string, seed int64)
}

type snapshotWriter struct {
	worldDir     string
	archiveEvery uint64
	index        snapshotIndex // may be nil
	log          *log.Logger
}

func (s *snapshotWriter) run(ctx context.Context, ch <-chan snapshot.SnapshotV1) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			s.write(snap)
		}
	}
}

// write persists one snapshot and returns its path ("" on failure).
func (s *snapshotWriter) write(snap snapshot.SnapshotV1) string {
	path := snapshotPath(s.worldDir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		s.log.Printf("snapshot write: %v", err)
		return ""
	}
	if s.index != nil {
		s.index.RecordSnapshot(path, snap)
	}
	milestone, archivedPath, ok, err := archive.ArchiveMilestone(s.worldDir, path, snap, s.archiveEvery)
	switch {
	case err != nil:
		s.log.Printf("archive milestone: %v", err)
	case ok:
		s.log.Printf("archived milestone %d at tick %d", milestone, snap.Header.Tick)
		if s.index != nil {
			s.index.RecordMilestone(milestone, snap.Header.Tick, archivedPath, snap.Seed)
		}
	}
	return path
}

// drainSources persists registry records handed off by the world loop.
// Only the newest pending batch matters, so older ones are skipped.
func drainSources(ctx context.Context, ch <-chan []registry.Record, st registry.Store, logger *log.Logger) {
	for {
		var recs []registry.Record
		select {
		case <-ctx.Done():
			return
		case recs = <-ch:
		}
	drain:
		for {
			select {
			case newer := <-ch:
				recs = newer
			default:
				break drain
			}
		}
		ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := st.SaveSources(ctx2, recs); err != nil {
			logger.Printf("save sources: %v", err)
		}
		cancel()
	}
}
