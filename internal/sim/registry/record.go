package registry

import (
	"context"
	"fmt"
	"sync"

	"festering.ai/internal/sim/voxel"
)

// Record is the persisted form of a source. The radius is derived on load.
type Record struct {
	Center   [3]int   `json:"center"`
	Strength int      `json:"strength"`
	LastTick uint64   `json:"last_tick"`
	Frontier [][3]int `json:"frontier"`
}

// Store loads and saves the full source list.
type Store interface {
	LoadSources(ctx context.Context) ([]Record, error)
	SaveSources(ctx context.Context, recs []Record) error
}

// Records converts the registry into records ordered by center. Frontiers
// keep their internal member order, so restoring them reproduces the same
// random picks.
func (r *Registry) Records() []Record {
	out := make([]Record, 0, len(r.sources))
	for _, c := range r.Centers() {
		s := r.sources[c]
		rec := Record{
			Center:   s.Center.ToArray(),
			Strength: s.Strength,
			LastTick: s.LastUpdateTick,
			Frontier: make([][3]int, 0, s.Frontier.Len()),
		}
		for _, p := range s.Frontier.Slice() {
			rec.Frontier = append(rec.Frontier, p.ToArray())
		}
		out = append(out, rec)
	}
	return out
}

// Restore replaces the registry contents with recs, adding frontier
// members in record order. Members outside a source's radius are dropped.
func (r *Registry) Restore(recs []Record) error {
	next := make(map[voxel.Pos]*Source, len(recs))
	for _, rec := range recs {
		if rec.Strength <= 0 {
			return fmt.Errorf("source %v: %w", rec.Center, ErrBadStrength)
		}
		center := voxel.FromArray(rec.Center)
		if _, dup := next[center]; dup {
			return fmt.Errorf("source %v: duplicate center", rec.Center)
		}
		strength := min(rec.Strength, MaxStrength)
		s := &Source{
			Center:         center,
			Strength:       strength,
			MaxRadius:      strength * r.cfg.RadiusPerStrength,
			Frontier:       voxel.NewSet(),
			LastUpdateTick: rec.LastTick,
		}
		for _, a := range rec.Frontier {
			p := voxel.FromArray(a)
			if s.Contains(p) {
				s.Frontier.Add(p)
			}
		}
		next[center] = s
	}
	r.sources = next
	r.dirty = true
	return nil
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu    sync.Mutex
	recs  []Record
	Saves int
}

func (m *MemoryStore) LoadSources(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.recs))
	copy(out, m.recs)
	return out, nil
}

func (m *MemoryStore) SaveSources(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs[:0:0], recs...)
	m.Saves++
	return nil
}
