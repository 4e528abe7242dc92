package indexdb

import (
	"context"
	"database/sql"
	"strings"

	"festering.ai/internal/sim/world"
)

// AuditQuery filters audit rows. Zero fields match everything; Limit<=0
// means 100.
type AuditQuery struct {
	Actor    string
	FromTick uint64
	ToTick   uint64
	// Near restricts rows to the cube of half-size Within around it.
	Near   *[3]int
	Within int
	Limit  int
}

// Audits runs q against an index database, newest first.
func Audits(ctx context.Context, db *sql.DB, q AuditQuery) ([]world.AuditEntry, error) {
	var where []string
	var args []any
	if q.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, q.Actor)
	}
	if q.FromTick > 0 {
		where = append(where, "tick >= ?")
		args = append(args, int64(q.FromTick))
	}
	if q.ToTick > 0 {
		where = append(where, "tick <= ?")
		args = append(args, int64(q.ToTick))
	}
	if q.Near != nil {
		p := *q.Near
		where = append(where, "x BETWEEN ? AND ?", "y BETWEEN ? AND ?", "z BETWEEN ? AND ?")
		args = append(args, p[0]-q.Within, p[0]+q.Within, p[1]-q.Within, p[1]+q.Within, p[2]-q.Within, p[2]+q.Within)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	stmt := `SELECT tick,actor,action,x,y,z,from_block,to_block,COALESCE(reason,'') FROM audits`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY tick DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.AuditEntry
	for rows.Next() {
		var a world.AuditEntry
		var tick int64
		if err := rows.Scan(&tick, &a.Actor, &a.Action, &a.Pos[0], &a.Pos[1], &a.Pos[2], &a.From, &a.To, &a.Reason); err != nil {
			return nil, err
		}
		a.Tick = uint64(tick)
		out = append(out, a)
	}
	return out, rows.Err()
}

type SnapshotInfo struct {
	Tick     uint64 `json:"tick"`
	Path     string `json:"path"`
	Seed     int64  `json:"seed"`
	Chunks   int    `json:"chunks"`
	Sources  int    `json:"sources"`
	Frontier int    `json:"frontier"`
}

// Snapshots lists recorded snapshots, newest first.
func Snapshots(ctx context.Context, db *sql.DB, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT tick,path,seed,chunks,sources,frontier FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotInfo
	for rows.Next() {
		var s SnapshotInfo
		var tick int64
		if err := rows.Scan(&tick, &s.Path, &s.Seed, &s.Chunks, &s.Sources, &s.Frontier); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ChangesByActor counts audited block changes per actor.
func ChangesByActor(ctx context.Context, db *sql.DB) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT actor, COUNT(*) FROM audits GROUP BY actor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var actor string
		var n int
		if err := rows.Scan(&actor, &n); err != nil {
			return nil, err
		}
		out[actor] = n
	}
	return out, rows.Err()
}

// DB exposes the underlying handle for the read helpers above.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }
