package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"festering.ai/internal/persistence/indexdb"
	"festering.ai/internal/protocol"
	"festering.ai/internal/sim/registry"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (audits), e.g. source@1,73,0")
	from := fs.Uint64("from_tick", 0, "lower tick bound (audits)")
	to := fs.Uint64("to_tick", 0, "upper tick bound (audits)")
	near := fs.String("near", "", "x,y,z center (audits)")
	within := fs.Int("within", 16, "half-size of the -near cube (audits)")
	file := fs.String("file", "", "file to import from or export to (default stdin/stdout)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "snapshots":
		snaps, err := indexdb.Snapshots(ctx, idx.DB(), *limit)
		exitOn("query", err)
		for _, s := range snaps {
			_ = enc.Encode(s)
		}
	case "sources":
		recs, err := idx.LoadSources(ctx)
		exitOn("load sources", err)
		for _, r := range recs {
			_ = enc.Encode(struct {
				Center   [3]int `json:"center"`
				Strength int    `json:"strength"`
				LastTick uint64 `json:"last_tick"`
				Frontier int    `json:"frontier"`
			}{r.Center, r.Strength, r.LastTick, len(r.Frontier)})
		}
	case "export":
		recs, err := idx.LoadSources(ctx)
		exitOn("load sources", err)
		out := io.Writer(os.Stdout)
		if *file != "" {
			f, err := os.Create(*file)
			exitOn("create", err)
			defer f.Close()
			out = f
		}
		exitOn("export", exportSources(out, recs))
	case "import":
		in := io.Reader(os.Stdin)
		if *file != "" {
			f, err := os.Open(*file)
			exitOn("open", err)
			defer f.Close()
			in = f
		}
		recs, err := importSources(in)
		exitOn("import", err)
		exitOn("save sources", idx.SaveSources(ctx, recs))
		fmt.Printf("imported %d sources into %s\n", len(recs), path)
	case "audits":
		aq := indexdb.AuditQuery{Actor: *actor, FromTick: *from, ToTick: *to, Within: *within, Limit: *limit}
		if *near != "" {
			p, err := parseVec3(*near)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -near:", err)
				os.Exit(2)
			}
			aq.Near = &p
		}
		rows, err := indexdb.Audits(ctx, idx.DB(), aq)
		exitOn("query", err)
		for _, a := range rows {
			_ = enc.Encode(a)
		}
	case "actors":
		counts, err := indexdb.ChangesByActor(ctx, idx.DB())
		exitOn("query", err)
		_ = enc.Encode(counts)
	case "milestones":
		rows, err := idx.DB().QueryContext(ctx, `SELECT milestone,tick,seed,snapshot_path,recorded_at FROM milestones ORDER BY milestone DESC LIMIT ?`, *limit)
		exitOn("query", err)
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Milestone  int    `json:"milestone"`
				Tick       int64  `json:"tick"`
				Seed       int64  `json:"seed"`
				Path       string `json:"snapshot_path"`
				RecordedAt string `json:"recorded_at"`
			}
			exitOn("scan", rows.Scan(&r.Milestone, &r.Tick, &r.Seed, &r.Path, &r.RecordedAt))
			_ = enc.Encode(r)
		}
		exitOn("rows", rows.Err())
	case "stats":
		_ = enc.Encode(idx.Stats())
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "queries: snapshots | sources | export | import | audits | actors | milestones | stats")
		os.Exit(2)
	}
}

// exportSources writes recs as an indented JSON array matching the source
// records schema.
func exportSources(w io.Writer, recs []registry.Record) error {
	if recs == nil {
		recs = []registry.Record{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	if err := protocol.Validate(protocol.SchemaSourceRecords, b); err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// importSources reads and schema-checks a source records document.
func importSources(r io.Reader) ([]registry.Record, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := protocol.Validate(protocol.SchemaSourceRecords, b); err != nil {
		return nil, err
	}
	var recs []registry.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	seen := make(map[[3]int]bool, len(recs))
	for _, rec := range recs {
		if seen[rec.Center] {
			return nil, fmt.Errorf("duplicate source center %v", rec.Center)
		}
		seen[rec.Center] = true
	}
	return recs, nil
}

func exitOn(what string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
