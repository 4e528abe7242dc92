package world

import (
	"context"
	"errors"

	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/voxel"
)

// SourceInfo is a read-only copy of a source for callers outside the loop.
type SourceInfo struct {
	Center    [3]int   `json:"center"`
	Strength  int      `json:"strength"`
	MaxRadius int      `json:"max_radius"`
	Frontier  int      `json:"frontier"`
	LastTick  uint64   `json:"last_tick"`
	Members   [][3]int `json:"members,omitempty"`
}

func sourceInfo(s registry.Source, members int) SourceInfo {
	info := SourceInfo{
		Center:    s.Center.ToArray(),
		Strength:  s.Strength,
		MaxRadius: s.MaxRadius,
		Frontier:  s.Frontier.Len(),
		LastTick:  s.LastUpdateTick,
	}
	if members != 0 {
		sorted := s.Frontier.Sorted()
		if members > 0 && len(sorted) > members {
			sorted = sorted[:members]
		}
		info.Members = make([][3]int, len(sorted))
		for i, p := range sorted {
			info.Members[i] = p.ToArray()
		}
	}
	return info
}

type FrameInfo struct {
	Axis        string `json:"axis"`
	LowerCorner [3]int `json:"lower_corner"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Crying      int    `json:"crying"`
}

// IgniteRequest lights the portal frame around Pos and registers a source
// at its center with one strength per crying obsidian block.
type IgniteRequest struct {
	Pos  voxel.Pos
	Resp chan IgniteResponse
}

type IgniteResponse struct {
	Frame  FrameInfo
	Source SourceInfo
	Err    error
}

// RegisterRequest adds a source without a portal frame. Unless the world
// runs with RequirePortal disabled, it is dropped on its first cycle if no
// portal is near.
type RegisterRequest struct {
	Center   voxel.Pos
	Strength int
	Resp     chan SourceResponse
}

type SourceResponse struct {
	Source SourceInfo
	Err    error
}

type RemoveRequest struct {
	Center voxel.Pos
	Resp   chan error
}

// BurstRequest converts up to Size voxels around the source at Center.
// Size <= 0 uses the source's strength times the burst multiplier.
type BurstRequest struct {
	Center voxel.Pos
	Size   int
	Resp   chan BurstResponse
}

// ArrivalRequest reports something coming through a portal at Pos.
type ArrivalRequest struct {
	Pos  voxel.Pos
	Resp chan BurstResponse
}

type BurstResponse struct {
	Center    [3]int `json:"center"`
	Converted int    `json:"converted"`
	Err       error  `json:"-"`
}

// ChunkRequest loads or unloads the square of chunks within Radius of
// (CX,CZ).
type ChunkRequest struct {
	CX, CZ int
	Radius int
	Unload bool
	Resp   chan ChunkResponse
}

type ChunkResponse struct {
	Changed int `json:"changed"`
	Loaded  int `json:"loaded"`
}

// SourcesRequest is answered immediately, between ticks. Members limits
// frontier positions per source: 0 omits them, negative includes all.
type SourcesRequest struct {
	Members int
	Resp    chan []SourceInfo
}

func roundTrip[Req, Resp any](ctx context.Context, ch chan<- Req, req Req, resp <-chan Resp) (Resp, error) {
	var zero Resp
	if ch == nil {
		return zero, ErrStopped
	}
	select {
	case ch <- req:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Ignite is safe to call from other goroutines. It is applied at the start
// of the next tick.
func (w *World) Ignite(ctx context.Context, pos voxel.Pos) (IgniteResponse, error) {
	resp := make(chan IgniteResponse, 1)
	r, err := roundTrip(ctx, w.ignite, IgniteRequest{Pos: pos, Resp: resp}, resp)
	if err != nil {
		return r, err
	}
	return r, r.Err
}

func (w *World) RegisterSource(ctx context.Context, center voxel.Pos, strength int) (SourceInfo, error) {
	resp := make(chan SourceResponse, 1)
	r, err := roundTrip(ctx, w.register, RegisterRequest{Center: center, Strength: strength, Resp: resp}, resp)
	if err != nil {
		return SourceInfo{}, err
	}
	return r.Source, r.Err
}

func (w *World) RemoveSource(ctx context.Context, center voxel.Pos) error {
	resp := make(chan error, 1)
	r, err := roundTrip(ctx, w.remove, RemoveRequest{Center: center, Resp: resp}, resp)
	if err != nil {
		return err
	}
	return r
}

func (w *World) Burst(ctx context.Context, center voxel.Pos, size int) (BurstResponse, error) {
	resp := make(chan BurstResponse, 1)
	r, err := roundTrip(ctx, w.burst, BurstRequest{Center: center, Size: size, Resp: resp}, resp)
	if err != nil {
		return r, err
	}
	return r, r.Err
}

func (w *World) Arrive(ctx context.Context, pos voxel.Pos) (BurstResponse, error) {
	resp := make(chan BurstResponse, 1)
	r, err := roundTrip(ctx, w.arrival, ArrivalRequest{Pos: pos, Resp: resp}, resp)
	if err != nil {
		return r, err
	}
	return r, r.Err
}

func (w *World) LoadChunks(ctx context.Context, cx, cz, radius int, unload bool) (ChunkResponse, error) {
	if radius < 0 {
		return ChunkResponse{}, errors.New("radius must be >= 0")
	}
	resp := make(chan ChunkResponse, 1)
	return roundTrip(ctx, w.chunkReq, ChunkRequest{CX: cx, CZ: cz, Radius: radius, Unload: unload, Resp: resp}, resp)
}

func (w *World) Sources(ctx context.Context, members int) ([]SourceInfo, error) {
	resp := make(chan []SourceInfo, 1)
	return roundTrip(ctx, w.listReq, SourcesRequest{Members: members, Resp: resp}, resp)
}

// LoadSources replaces the registry with the store's records. It must be
// called before Run or after it has returned.
func (w *World) LoadSources(ctx context.Context, st registry.Store) error {
	return w.reg.Load(ctx, st)
}

// SaveSources writes the whole registry, even when the periodic hand-off
// already cleared its dirty flag. Same threading rule as LoadSources.
func (w *World) SaveSources(ctx context.Context, st registry.Store) error {
	return w.reg.Flush(ctx, st)
}

// sinkStore hands records to the source sink without blocking the loop.
type sinkStore struct{ ch chan<- []registry.Record }

func (s sinkStore) LoadSources(context.Context) ([]registry.Record, error) { return nil, nil }

func (s sinkStore) SaveSources(_ context.Context, recs []registry.Record) error {
	select {
	case s.ch <- recs:
		return nil
	default:
		return errors.New("source sink backpressure")
	}
}
