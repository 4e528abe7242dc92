package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	persistlog "festering.ai/internal/persistence/log"
	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/voxel"
	"festering.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "ignite", "register", "remove", "burst", "arrival":
			sourceCmd(os.Args[1], os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// rollbackCmd writes a copy of a snapshot with the audited changes inside
// an AABB undone, newest first. Sources centered in the box are dropped,
// and other sources lose frontier members inside it.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	sinceTick := fs.Uint64("since_tick", 0, "rollback changes since tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "rollback changes up to tick (inclusive, optional; defaults to snapshot tick)")
	actorPrefix := fs.String("actor", "source@", "only undo changes whose actor has this prefix (empty for all)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	min, max, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	endTick := *toTick
	if endTick == 0 || endTick > snap.Header.Tick {
		endTick = snap.Header.Tick
	}

	recs, err := readAudit(filepath.Join(worldDir, "audit"), auditFilter{
		Since:       *sinceTick,
		To:          endTick,
		Min:         min,
		Max:         max,
		ActorPrefix: *actorPrefix,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, recs)
	dropped, trimmed := pruneSources(&snap, min, max)

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.rollback.snap.zst", snap.Header.Tick))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s tick=%d aabb=%s since=%d to=%d entries=%d applied=%d skipped=%d sources_dropped=%d frontier_trimmed=%d out=%s\n",
		filepath.Base(snapshotToLoad), snap.Header.Tick, *aabb, *sinceTick, endTick, len(recs), applied, skipped, dropped, trimmed, *outPath)
}

type auditFilter struct {
	Since, To   uint64
	Min, Max    [3]int
	ActorPrefix string
}

type auditRec struct {
	Seq   uint64
	Entry world.AuditEntry
}

func readAudit(auditDir string, f auditFilter) ([]auditRec, error) {
	out := make([]auditRec, 0, 1024)
	var seq uint64
	err := persistlog.ReadAudits(auditDir, func(e world.AuditEntry) error {
		seq++
		if e.Action != "SET_BLOCK" {
			return nil
		}
		if e.Tick < f.Since || e.Tick > f.To {
			return nil
		}
		if !withinAABB(e.Pos, f.Min, f.Max) || !strings.HasPrefix(e.Actor, f.ActorPrefix) {
			return nil
		}
		out = append(out, auditRec{Seq: seq, Entry: e})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse chronological apply: highest tick first; for same tick use reverse read order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.Tick != out[j].Entry.Tick {
			return out[i].Entry.Tick > out[j].Entry.Tick
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func applyRollback(snap *snapshot.SnapshotV1, recs []auditRec) (applied, skipped int) {
	if snap == nil || len(recs) == 0 {
		return 0, 0
	}
	chunks := map[[2]int]*snapshot.ChunkV1{}
	for i := range snap.Chunks {
		ch := &snap.Chunks[i]
		chunks[[2]int{ch.CX, ch.CZ}] = ch
	}
	palette := make(map[string]uint16, len(snap.Palette))
	for i, s := range snap.Palette {
		palette[s] = uint16(i)
	}

	for _, r := range recs {
		p := r.Entry.Pos
		cx := voxel.FloorDiv(p[0], world.ChunkSize)
		cz := voxel.FloorDiv(p[2], world.ChunkSize)
		lx := voxel.Mod(p[0], world.ChunkSize)
		lz := voxel.Mod(p[2], world.ChunkSize)
		y := p[1]
		ch := chunks[[2]int{cx, cz}]
		if ch == nil || y < 0 || y >= ch.Height {
			skipped++
			continue
		}
		i := lx + lz*world.ChunkSize + y*world.ChunkSize*world.ChunkSize
		if i < 0 || i >= len(ch.Blocks) {
			skipped++
			continue
		}
		id, ok := palette[r.Entry.From]
		if !ok {
			id = uint16(len(snap.Palette))
			snap.Palette = append(snap.Palette, r.Entry.From)
			palette[r.Entry.From] = id
		}
		ch.Blocks[i] = id
		applied++
	}
	return applied, skipped
}

// pruneSources drops sources centered inside the box and removes frontier
// members inside it from the rest.
func pruneSources(snap *snapshot.SnapshotV1, min, max [3]int) (dropped, trimmed int) {
	kept := snap.Sources[:0]
	for _, s := range snap.Sources {
		if withinAABB(s.Center, min, max) {
			dropped++
			continue
		}
		fr := s.Frontier[:0]
		for _, p := range s.Frontier {
			if withinAABB(p, min, max) {
				trimmed++
				continue
			}
			fr = append(fr, p)
		}
		s.Frontier = fr
		kept = append(kept, s)
	}
	snap.Sources = kept
	return dropped, trimmed
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
