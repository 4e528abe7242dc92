// Package registry owns every corruption source and its frontier. All reads
// hand out copies; the only way to change a frontier is UpdateFrontier.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"festering.ai/internal/sim/voxel"
)

var (
	ErrTooClose    = errors.New("source too close to an existing source")
	ErrBadStrength = errors.New("source strength must be positive")
	ErrNotFound    = errors.New("source not found")
)

const (
	DefaultRadiusPerStrength = 64
	DefaultMergeRadius       = 5

	// MaxStrength caps a source's strength; larger values are clamped.
	MaxStrength = 64
)

type Config struct {
	RadiusPerStrength int
	MergeRadius       int
}

func (c *Config) applyDefaults() {
	if c.RadiusPerStrength <= 0 {
		c.RadiusPerStrength = DefaultRadiusPerStrength
	}
	if c.MergeRadius <= 0 {
		c.MergeRadius = DefaultMergeRadius
	}
}

// Source is a growth origin.
type Source struct {
	Center         voxel.Pos
	Strength       int
	MaxRadius      int
	Frontier       *voxel.Set
	LastUpdateTick uint64
}

// Contains reports whether p is within the source's radius.
func (s Source) Contains(p voxel.Pos) bool {
	return voxel.WithinRadius(s.Center, p, s.MaxRadius)
}

// Clone deep-copies the frontier.
func (s Source) Clone() Source {
	s.Frontier = s.Frontier.Clone()
	return s
}

type Registry struct {
	cfg     Config
	sources map[voxel.Pos]*Source
	dirty   bool
}

func New(cfg Config) *Registry {
	cfg.applyDefaults()
	return &Registry{cfg: cfg, sources: map[voxel.Pos]*Source{}}
}

func (r *Registry) Config() Config { return r.cfg }

// Register creates a source whose frontier holds only its center.
func (r *Registry) Register(center voxel.Pos, strength int) (Source, error) {
	if strength <= 0 {
		return Source{}, ErrBadStrength
	}
	strength = min(strength, MaxStrength)
	for c := range r.sources {
		if voxel.WithinRadius(c, center, r.cfg.MergeRadius) {
			return Source{}, fmt.Errorf("%w: %s is within %d of %s", ErrTooClose, center, r.cfg.MergeRadius, c)
		}
	}
	s := &Source{
		Center:    center,
		Strength:  strength,
		MaxRadius: strength * r.cfg.RadiusPerStrength,
		Frontier:  voxel.NewSet(center),
	}
	r.sources[center] = s
	r.dirty = true
	return s.Clone(), nil
}

// Remove deletes the source at center and reports whether one existed.
func (r *Registry) Remove(center voxel.Pos) bool {
	if _, ok := r.sources[center]; !ok {
		return false
	}
	delete(r.sources, center)
	r.dirty = true
	return true
}

func (r *Registry) Get(center voxel.Pos) (Source, bool) {
	s, ok := r.sources[center]
	if !ok {
		return Source{}, false
	}
	return s.Clone(), true
}

func (r *Registry) Len() int { return len(r.sources) }

// FrontierSize sums frontier members over all sources.
func (r *Registry) FrontierSize() int {
	n := 0
	for _, s := range r.sources {
		n += s.Frontier.Len()
	}
	return n
}

// Centers returns the registered centers in a stable order.
func (r *Registry) Centers() []voxel.Pos {
	out := make([]voxel.Pos, 0, len(r.sources))
	for c := range r.sources {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return voxel.Less(out[i], out[j]) })
	return out
}

// All returns copies of every source ordered by center.
func (r *Registry) All() []Source {
	centers := r.Centers()
	out := make([]Source, 0, len(centers))
	for _, c := range centers {
		out = append(out, r.sources[c].Clone())
	}
	return out
}

// Near returns the source whose center is closest to p, provided it lies
// within the given distance. Ties go to the lower center.
func (r *Registry) Near(p voxel.Pos, within int) (Source, bool) {
	var best *Source
	bestD := 0
	for _, c := range r.Centers() {
		if !voxel.WithinRadius(c, p, within) {
			continue
		}
		d := voxel.DistSq(c, p)
		if best == nil || d < bestD {
			best = r.sources[c]
			bestD = d
		}
	}
	if best == nil {
		return Source{}, false
	}
	return best.Clone(), true
}

// UpdateFrontier replaces the frontier of the source at center. Unknown
// centers are ignored.
func (r *Registry) UpdateFrontier(center voxel.Pos, frontier *voxel.Set, tick uint64) bool {
	s, ok := r.sources[center]
	if !ok {
		return false
	}
	s.Frontier = frontier.Clone()
	if tick > s.LastUpdateTick {
		s.LastUpdateTick = tick
	}
	r.dirty = true
	return true
}

// Dirty reports whether anything changed since the last successful Save.
func (r *Registry) Dirty() bool { return r.dirty }

func (r *Registry) MarkDirty() { r.dirty = true }

// Load replaces the registry contents with what the store holds.
func (r *Registry) Load(ctx context.Context, st Store) error {
	recs, err := st.LoadSources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if err := r.Restore(recs); err != nil {
		return err
	}
	r.dirty = false
	return nil
}

// Save writes every source to the store when the registry is dirty.
func (r *Registry) Save(ctx context.Context, st Store) error {
	if !r.dirty {
		return nil
	}
	if err := st.SaveSources(ctx, r.Records()); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}
	r.dirty = false
	return nil
}

// Flush writes every source to the store whether or not the registry is
// dirty. A failed write leaves it dirty.
func (r *Registry) Flush(ctx context.Context, st Store) error {
	r.dirty = true
	return r.Save(ctx, st)
}
