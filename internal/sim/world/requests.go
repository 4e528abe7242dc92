package world

import (
	"errors"
	"fmt"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/portal"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rng"
	"festering.ai/internal/sim/voxel"
)

// Batch carries the requests applied at the start of one tick, in field
// order.
type Batch struct {
	Chunks    []ChunkRequest
	Ignites   []IgniteRequest
	Registers []RegisterRequest
	Removes   []RemoveRequest
	Arrivals  []ArrivalRequest
	Bursts    []BurstRequest
}

func (b *Batch) reset() {
	b.Chunks = b.Chunks[:0]
	b.Ignites = b.Ignites[:0]
	b.Registers = b.Registers[:0]
	b.Removes = b.Removes[:0]
	b.Arrivals = b.Arrivals[:0]
	b.Bursts = b.Bursts[:0]
}

func (w *World) applyBatch(b Batch, r rng.Source) {
	for _, req := range b.Chunks {
		w.handleChunkReq(req)
	}
	for _, req := range b.Ignites {
		w.handleIgnite(req)
	}
	for _, req := range b.Registers {
		w.handleRegister(req)
	}
	for _, req := range b.Removes {
		w.handleRemove(req)
	}
	for _, req := range b.Arrivals {
		w.handleArrival(req, r)
	}
	for _, req := range b.Bursts {
		w.handleBurst(req, r)
	}
}

func (w *World) record(kind string, pos [3]int, strength, size int, err error) {
	res := "ok"
	if err != nil {
		res = err.Error()
	}
	w.stepRequests = append(w.stepRequests, RecordedRequest{
		Kind:     kind,
		Pos:      pos,
		Strength: strength,
		Size:     size,
		Result:   res,
	})
}

func (w *World) handleChunkReq(req ChunkRequest) {
	resp := ChunkResponse{}
	if req.Unload {
		for dz := -req.Radius; dz <= req.Radius; dz++ {
			for dx := -req.Radius; dx <= req.Radius; dx++ {
				if w.chunks.Unload(ChunkKey{CX: req.CX + dx, CZ: req.CZ + dz}) {
					resp.Changed++
				}
			}
		}
	} else {
		resp.Changed = w.chunks.LoadArea(req.CX, req.CZ, req.Radius)
	}
	resp.Loaded = len(w.chunks.loaded)
	kind := "LOAD"
	if req.Unload {
		kind = "UNLOAD"
	}
	w.record(kind, [3]int{req.CX, 0, req.CZ}, 0, req.Radius, nil)
	if req.Resp != nil {
		select {
		case req.Resp <- resp:
		default:
		}
	}
}

func (w *World) handleIgnite(req IgniteRequest) {
	resp := w.ignitePortal(req)
	w.record("IGNITE", req.Pos.ToArray(), resp.Source.Strength, 0, resp.Err)
	if req.Resp != nil {
		select {
		case req.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}

func (w *World) ignitePortal(req IgniteRequest) IgniteResponse {
	var resp IgniteResponse
	if !w.chunks.Loaded(req.Pos) {
		resp.Err = fmt.Errorf("%w: %s", ErrNotLoaded, req.Pos)
		return resp
	}
	frame, err := portal.Light(auditedStore{w: w, actor: "admin", reason: "ignite"}, req.Pos)
	if errors.Is(err, portal.ErrNoFrame) {
		// Already lit: measure the existing portal instead.
		frame, err = portal.Scan(w.chunks, req.Pos)
	}
	if err != nil {
		resp.Err = err
		return resp
	}
	axis := "x"
	if frame.Axis == block.AxisZ {
		axis = "z"
	}
	resp.Frame = FrameInfo{
		Axis:        axis,
		LowerCorner: frame.LowerCorner.ToArray(),
		Width:       frame.Width,
		Height:      frame.Height,
		Crying:      frame.Crying,
	}
	if frame.Crying == 0 {
		resp.Err = portal.ErrPlainFrame
		return resp
	}
	src, err := w.engine.RegisterSource(w.chunks, w.reg, frame.Center(), frame.Crying, w.stepTick)
	if err != nil {
		resp.Err = err
		return resp
	}
	resp.Source = sourceInfo(src, 0)
	return resp
}

func (w *World) handleRegister(req RegisterRequest) {
	var resp SourceResponse
	if !w.chunks.Loaded(req.Center) {
		resp.Err = fmt.Errorf("%w: %s", ErrNotLoaded, req.Center)
	} else if src, err := w.engine.RegisterSource(w.chunks, w.reg, req.Center, req.Strength, w.stepTick); err != nil {
		resp.Err = err
	} else {
		resp.Source = sourceInfo(src, 0)
	}
	w.record("REGISTER", req.Center.ToArray(), req.Strength, 0, resp.Err)
	if req.Resp != nil {
		select {
		case req.Resp <- resp:
		default:
		}
	}
}

func (w *World) handleRemove(req RemoveRequest) {
	err := w.engine.RemoveSource(w.reg, req.Center)
	w.record("REMOVE", req.Center.ToArray(), 0, 0, err)
	if req.Resp != nil {
		select {
		case req.Resp <- err:
		default:
		}
	}
}

func (w *World) handleBurst(req BurstRequest, r rng.Source) {
	resp := BurstResponse{Center: req.Center.ToArray()}
	size := req.Size
	if src, ok := w.reg.Get(req.Center); ok && size <= 0 {
		size = src.Strength * w.cfg.BurstSizePerStrength
	}
	resp.Converted, resp.Err = w.engine.TriggerBurst(w.chunks, w.reg, req.Center, size, w.stepTick, r)
	if resp.Err == nil && w.metricsSink != nil {
		w.metricsSink.ObserveBurst(resp.Converted)
	}
	w.record("BURST", resp.Center, 0, size, resp.Err)
	if req.Resp != nil {
		select {
		case req.Resp <- resp:
		default:
		}
	}
}

func (w *World) handleArrival(req ArrivalRequest, r rng.Source) {
	var resp BurstResponse
	center, n, ok := w.engine.Arrival(w.chunks, w.reg, req.Pos, w.stepTick, r)
	if !ok {
		resp.Center = req.Pos.ToArray()
		resp.Err = fmt.Errorf("%w: no source within %d of %s", registry.ErrNotFound, w.cfg.BurstTriggerDistance, req.Pos)
	} else {
		resp.Center = center.ToArray()
		resp.Converted = n
		if w.metricsSink != nil {
			w.metricsSink.ObserveBurst(n)
		}
	}
	w.record("ARRIVAL", req.Pos.ToArray(), 0, n, resp.Err)
	if req.Resp != nil {
		select {
		case req.Resp <- resp:
		default:
		}
	}
}

func (w *World) handleSourcesReq(req SourcesRequest) {
	if req.Resp == nil {
		return
	}
	all := w.reg.All()
	out := make([]SourceInfo, 0, len(all))
	for _, s := range all {
		out = append(out, sourceInfo(s, req.Members))
	}
	select {
	case req.Resp <- out:
	default:
	}
}

// BatchFromRecorded rebuilds the batch that produced a tick log entry's
// requests. Responses are not wired; replays only compare digests.
func BatchFromRecorded(reqs []RecordedRequest) (Batch, error) {
	var b Batch
	for _, r := range reqs {
		pos := voxel.FromArray(r.Pos)
		switch r.Kind {
		case "LOAD", "UNLOAD":
			b.Chunks = append(b.Chunks, ChunkRequest{CX: r.Pos[0], CZ: r.Pos[2], Radius: r.Size, Unload: r.Kind == "UNLOAD"})
		case "IGNITE":
			b.Ignites = append(b.Ignites, IgniteRequest{Pos: pos})
		case "REGISTER":
			b.Registers = append(b.Registers, RegisterRequest{Center: pos, Strength: r.Strength})
		case "REMOVE":
			b.Removes = append(b.Removes, RemoveRequest{Center: pos})
		case "ARRIVAL":
			b.Arrivals = append(b.Arrivals, ArrivalRequest{Pos: pos})
		case "BURST":
			b.Bursts = append(b.Bursts, BurstRequest{Center: pos, Size: r.Size})
		default:
			return Batch{}, fmt.Errorf("unknown recorded request kind %q", r.Kind)
		}
	}
	return b, nil
}
