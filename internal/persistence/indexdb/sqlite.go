// Package indexdb is the sqlite side store of a world: the persisted source
// registry plus a queryable index of the tick and audit logs, snapshots and
// archived milestones.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/tuning"
	"festering.ai/internal/sim/world"
)

var ErrClosed = errors.New("index closed")

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick      atomic.Uint64
	dropAudit     atomic.Uint64
	dropSnapshot  atomic.Uint64
	dropMilestone atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqMilestone
	reqSources
)

type req struct {
	kind reqKind

	tick      world.TickLogEntry
	audit     world.AuditEntry
	snapshot  snapshotRow
	milestone milestoneRow
	sources   []registry.Record
	done      chan error
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Seed     int64
	Height   int
	Chunks   int
	Sources  int
	Frontier int
}

type milestoneRow struct {
	Milestone  int
	Tick       uint64
	Path       string
	Seed       int64
	RecordedAt string
}

// Stats reports writer queue pressure. Dropped entries are still in the
// JSONL logs; only the index misses them.
type Stats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	DropTickTotal      uint64 `json:"drop_tick_total"`
	DropAuditTotal     uint64 `json:"drop_audit_total"`
	DropSnapshotTotal  uint64 `json:"drop_snapshot_total"`
	DropMilestoneTotal uint64 `json:"drop_milestone_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// A busy spread cycle emits thousands of audits in one tick.
		ch: make(chan req, 262144),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			requests INTEGER NOT NULL,
			changes INTEGER NOT NULL,
			cycle_sources INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			strength INTEGER NOT NULL,
			size INTEGER NOT NULL,
			result TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_kind_tick ON requests(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block TEXT NOT NULL,
			to_block TEXT NOT NULL,
			reason TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			sources INTEGER NOT NULL,
			frontier INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS milestones (
			milestone INTEGER PRIMARY KEY,
			tick INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			strength INTEGER NOT NULL,
			last_tick INTEGER NOT NULL,
			PRIMARY KEY (cx, cy, cz)
		);`,
		`CREATE TABLE IF NOT EXISTS frontier (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			PRIMARY KEY (cx, cy, cz, seq),
			FOREIGN KEY (cx, cy, cz) REFERENCES sources(cx, cy, cz) ON DELETE CASCADE
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropTickTotal:      s.dropTick.Load(),
		DropAuditTotal:     s.dropAudit.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
		DropMilestoneTotal: s.dropMilestone.Load(),
	}
}

// enqueue never blocks the caller; a full queue drops r.
func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
		return
	default:
	}
	switch r.kind {
	case reqTick:
		s.dropTick.Add(1)
	case reqAudit:
		s.dropAudit.Add(1)
	case reqSnapshot:
		s.dropSnapshot.Add(1)
	case reqMilestone:
		s.dropMilestone.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	s.enqueue(req{kind: reqTick, tick: entry})
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	frontier := 0
	for _, src := range snap.Sources {
		frontier += len(src.Frontier)
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Seed:     snap.Seed,
		Height:   snap.Height,
		Chunks:   len(snap.Chunks),
		Sources:  len(snap.Sources),
		Frontier: frontier,
	}})
}

func (s *SQLiteIndex) RecordMilestone(milestone int, tick uint64, archivedSnapshotPath string, seed int64) {
	if milestone <= 0 || archivedSnapshotPath == "" {
		return
	}
	s.enqueue(req{kind: reqMilestone, milestone: milestoneRow{
		Milestone:  milestone,
		Tick:       tick,
		Path:       archivedSnapshotPath,
		Seed:       seed,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

// UpsertTuning stores the tuning values the server actually applies.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSources reads the persisted registry. Call it before the world loop
// starts writing through the index.
func (s *SQLiteIndex) LoadSources(ctx context.Context) ([]registry.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cx,cy,cz,strength,last_tick FROM sources ORDER BY cx,cy,cz`)
	if err != nil {
		return nil, err
	}
	var out []registry.Record
	byCenter := map[[3]int]int{}
	for rows.Next() {
		var rec registry.Record
		var last int64
		if err := rows.Scan(&rec.Center[0], &rec.Center[1], &rec.Center[2], &rec.Strength, &last); err != nil {
			_ = rows.Close()
			return nil, err
		}
		rec.LastTick = uint64(last)
		byCenter[rec.Center] = len(out)
		out = append(out, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT cx,cy,cz,x,y,z FROM frontier ORDER BY cx,cy,cz,seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c, p [3]int
		if err := rows.Scan(&c[0], &c[1], &c[2], &p[0], &p[1], &p[2]); err != nil {
			return nil, err
		}
		if i, ok := byCenter[c]; ok {
			out[i].Frontier = append(out[i].Frontier, p)
		}
	}
	return out, rows.Err()
}

// SaveSources replaces the persisted registry. The write goes through the
// writer goroutine so it never races the batched index transaction; it
// blocks until committed or ctx is done.
func (s *SQLiteIndex) SaveSources(ctx context.Context, recs []registry.Record) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	done := make(chan error, 1)
	select {
	case s.ch <- req{kind: reqSources, sources: recs, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeSources(tx *sql.Tx, recs []registry.Record) error {
	if _, err := tx.Exec(`DELETE FROM frontier`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sources`); err != nil {
		return err
	}
	insSource, err := tx.Prepare(`INSERT INTO sources(cx,cy,cz,strength,last_tick) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insSource.Close()
	insFrontier, err := tx.Prepare(`INSERT INTO frontier(cx,cy,cz,seq,x,y,z) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insFrontier.Close()

	for _, r := range recs {
		c := r.Center
		if _, err := insSource.Exec(c[0], c[1], c[2], r.Strength, int64(r.LastTick)); err != nil {
			return fmt.Errorf("source %v: %w", c, err)
		}
		for i, p := range r.Frontier {
			if _, err := insFrontier.Exec(c[0], c[1], c[2], i, p[0], p[1], p[2]); err != nil {
				return fmt.Errorf("source %v frontier: %w", c, err)
			}
		}
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared on db; executed within tx.
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,requests,changes,cycle_sources,raw_json) VALUES(?,?,?,?,?,?)`)
	insertRequest, _ := s.db.Prepare(`INSERT OR REPLACE INTO requests(tick,seq,kind,x,y,z,strength,size,result) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,from_block,to_block,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,height,chunks,sources,frontier) VALUES(?,?,?,?,?,?,?)`)
	insertMilestone, _ := s.db.Prepare(`INSERT OR REPLACE INTO milestones(milestone,tick,seed,snapshot_path,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRequest, insertAudit, insertSnapshot, insertMilestone} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		return err
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqSources {
			// Commit pending index rows first; the registry gets its own tx.
			_ = commit()
			r.done <- s.saveSources(ctx, r.sources)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			cycleSources := 0
			if r.tick.Cycle != nil {
				cycleSources = len(r.tick.Cycle.Sources)
			}
			b, _ := json.Marshal(r.tick)
			if !exec(insertTick, int64(r.tick.Tick), r.tick.Digest, len(r.tick.Requests), r.tick.Changes, cycleSources, string(b)) {
				continue
			}
			for i, q := range r.tick.Requests {
				if !exec(insertRequest, int64(r.tick.Tick), i, q.Kind, q.Pos[0], q.Pos[1], q.Pos[2], q.Strength, q.Size, q.Result) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			exec(insertAudit, int64(a.Tick), seq, a.Actor, a.Action, a.Pos[0], a.Pos[1], a.Pos[2], a.From, a.To, a.Reason)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.Height, sn.Chunks, sn.Sources, sn.Frontier)

		case reqMilestone:
			m := r.milestone
			exec(insertMilestone, m.Milestone, int64(m.Tick), m.Seed, m.Path, m.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			_ = commit()
		}
	}

	_ = commit()
}

func (s *SQLiteIndex) saveSources(ctx context.Context, recs []registry.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := writeSources(tx, recs); err != nil {
		return err
	}
	return tx.Commit()
}
