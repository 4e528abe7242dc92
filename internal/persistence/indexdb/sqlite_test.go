package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/engine"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/tuning"
	"festering.ai/internal/sim/voxel"
	"festering.ai/internal/sim/world"
)

func openTemp(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return idx, path
}

func TestSQLiteIndex_SourcesRoundTrip(t *testing.T) {
	idx, _ := openTemp(t)
	defer idx.Close()
	ctx := context.Background()

	recs := []registry.Record{
		{Center: [3]int{1, 73, 0}, Strength: 2, LastTick: 40, Frontier: [][3]int{{3, 70, 0}, {1, 70, 0}, {2, 70, 1}}},
		{Center: [3]int{-50, 64, 9}, Strength: 1, LastTick: 20},
	}
	if err := idx.SaveSources(ctx, recs); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}
	// A second save replaces rather than appends.
	recs[0].Frontier = recs[0].Frontier[:2]
	if err := idx.SaveSources(ctx, recs); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}

	got, err := idx.LoadSources(ctx)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sources: got %d want 2", len(got))
	}
	// Rows come back ordered by center.
	if got[0].Center != [3]int{-50, 64, 9} || len(got[0].Frontier) != 0 {
		t.Fatalf("first: %+v", got[0])
	}
	src := got[1]
	if src.Strength != 2 || src.LastTick != 40 || len(src.Frontier) != 2 {
		t.Fatalf("second: %+v", src)
	}
	if src.Frontier[0] != [3]int{3, 70, 0} || src.Frontier[1] != [3]int{1, 70, 0} {
		t.Fatalf("frontier order: %v", src.Frontier)
	}
}

func TestSQLiteIndex_RegistryStore(t *testing.T) {
	idx, _ := openTemp(t)
	defer idx.Close()
	ctx := context.Background()

	reg := registry.New(registry.Config{})
	if _, err := reg.Register(voxel.Pos{Y: 70}, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Save(ctx, idx); err != nil {
		t.Fatalf("save: %v", err)
	}
	back := registry.New(registry.Config{})
	if err := back.Load(ctx, idx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s, ok := back.Get(voxel.Pos{Y: 70}); !ok || s.Strength != 3 || s.MaxRadius != 192 {
		t.Fatalf("loaded source: %+v ok=%v", s, ok)
	}
}

func TestSQLiteIndex_IndexesTicksAuditsSnapshots(t *testing.T) {
	idx, path := openTemp(t)

	_ = idx.WriteTick(world.TickLogEntry{
		Tick:     20,
		Digest:   "d20",
		Changes:  2,
		Requests: []world.RecordedRequest{{Kind: "IGNITE", Pos: [3]int{0, 72, 0}, Result: "ok"}},
		Cycle:    &engine.TickReport{Tick: 20, Sources: []engine.SourceReport{{Spread: true}}},
	})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 20, Actor: "source@1,73,0", Action: "SET_BLOCK", Pos: [3]int{2, 70, 0}, From: "GRASS_BLOCK", To: "NETHERRACK", Reason: "spread"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 20, Actor: "source@1,73,0", Action: "SET_BLOCK", Pos: [3]int{3, 70, 0}, From: "DIRT", To: "SOUL_SOIL", Reason: "spread"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 21, Actor: "admin", Action: "SET_BLOCK", Pos: [3]int{90, 70, 0}, From: "AIR", To: "NETHER_PORTAL[axis=x]", Reason: "ignite"})
	idx.RecordSnapshot("/data/20.snap.zst", snapshot.SnapshotV1{
		Header:  snapshot.Header{Tick: 20},
		Seed:    42,
		Sources: []snapshot.SourceV1{{Frontier: [][3]int{{1, 2, 3}, {4, 5, 6}}}},
	})
	idx.RecordMilestone(1, 20, "/data/archives/milestone_0001/20.snap.zst", 42)
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	var digest string
	var reqs, cycle int
	if err := db.QueryRow(`SELECT digest,requests,cycle_sources FROM ticks WHERE tick=20`).Scan(&digest, &reqs, &cycle); err != nil {
		t.Fatalf("tick row: %v", err)
	}
	if digest != "d20" || reqs != 1 || cycle != 1 {
		t.Fatalf("tick row: digest=%s requests=%d cycle=%d", digest, reqs, cycle)
	}
	var kind string
	if err := db.QueryRow(`SELECT kind FROM requests WHERE tick=20 AND seq=0`).Scan(&kind); err != nil || kind != "IGNITE" {
		t.Fatalf("request row: kind=%q err=%v", kind, err)
	}

	audits, err := Audits(ctx, db, AuditQuery{Actor: "source@1,73,0"})
	if err != nil {
		t.Fatalf("Audits: %v", err)
	}
	if len(audits) != 2 || audits[0].To != "SOUL_SOIL" {
		t.Fatalf("audits: %+v", audits)
	}
	near, err := Audits(ctx, db, AuditQuery{Near: &[3]int{90, 70, 0}, Within: 2})
	if err != nil || len(near) != 1 || near[0].Actor != "admin" {
		t.Fatalf("near audits: %+v err=%v", near, err)
	}
	counts, err := ChangesByActor(ctx, db)
	if err != nil || counts["source@1,73,0"] != 2 || counts["admin"] != 1 {
		t.Fatalf("counts: %v err=%v", counts, err)
	}

	snaps, err := Snapshots(ctx, db, 0)
	if err != nil || len(snaps) != 1 || snaps[0].Frontier != 2 || snaps[0].Sources != 1 {
		t.Fatalf("snapshots: %+v err=%v", snaps, err)
	}
	var milestonePath string
	if err := db.QueryRow(`SELECT snapshot_path FROM milestones WHERE milestone=1`).Scan(&milestonePath); err != nil {
		t.Fatalf("milestone row: %v", err)
	}
	var tuneJSON string
	if err := db.QueryRow(`SELECT json FROM config WHERE name='tuning'`).Scan(&tuneJSON); err != nil || tuneJSON == "" {
		t.Fatalf("tuning row: %q err=%v", tuneJSON, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})
	s.RecordMilestone(1, 2, "/tmp/2.snap.zst", 42)

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 || st.DropMilestoneTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_SaveAfterClose(t *testing.T) {
	idx, _ := openTemp(t)
	_ = idx.Close()
	if err := idx.SaveSources(context.Background(), nil); err != ErrClosed {
		t.Fatalf("got %v want ErrClosed", err)
	}
}
