package world

import (
	"context"
	"encoding/json"
	"fmt"

	"festering.ai/internal/observerproto"
	"festering.ai/internal/sim/engine"
)

// ObserverJoinRequest registers a read-only observer session that receives:
// - per-tick source state (TickOut, latest wins)
// - voxel changes (DataOut, dropped when full)
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	DataOut   chan []byte

	Changes       bool
	FrontierLimit int
}

// ObserverSubscribeRequest updates an existing observer session subscription settings.
type ObserverSubscribeRequest struct {
	SessionID string

	Changes       bool
	FrontierLimit int
}

type observerCfg struct {
	changes       bool
	frontierLimit int
}

type observerClient struct {
	id      string
	tickOut chan []byte
	dataOut chan []byte

	cfg observerCfg
}

func clampInt(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

const maxFrontierLimit = 4096

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if w == nil || req.SessionID == "" || req.TickOut == nil || req.DataOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[req.SessionID]; old != nil {
		close(old.tickOut)
		close(old.dataOut)
	}
	w.observers[req.SessionID] = &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		dataOut: req.DataOut,
		cfg: observerCfg{
			changes:       req.Changes,
			frontierLimit: clampInt(req.FrontierLimit, 0, maxFrontierLimit, 0),
		},
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.cfg.changes = req.Changes
	c.cfg.frontierLimit = clampInt(req.FrontierLimit, 0, maxFrontierLimit, 0)
}

func (w *World) handleObserverLeave(sessionID string) {
	if sessionID == "" {
		return
	}
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
	close(c.dataOut)
}

func cycleSummary(rep *engine.TickReport) *observerproto.CycleSummary {
	if rep == nil {
		return nil
	}
	s := &observerproto.CycleSummary{Processed: len(rep.Sources)}
	for _, sr := range rep.Sources {
		if sr.Spread {
			s.Spread++
		}
		s.Matured += sr.Matured
		s.Pruned += sr.Pruned
		if sr.Removed {
			s.Removed++
		}
		if sr.Skipped {
			s.Skipped++
		}
	}
	return s
}

func (w *World) broadcastObservers(tick uint64, cycle *engine.TickReport) {
	if len(w.observers) == 0 {
		return
	}

	base := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		Cycle:           cycleSummary(cycle),
		Changes:         len(w.stepChanges),
	}
	all := w.reg.All()
	tickMsg := func(limit int) []byte {
		msg := base
		msg.Sources = make([]observerproto.SourceState, 0, len(all))
		for _, s := range all {
			info := sourceInfo(s, limit)
			msg.Sources = append(msg.Sources, observerproto.SourceState{
				Center:    info.Center,
				Strength:  info.Strength,
				MaxRadius: info.MaxRadius,
				Frontier:  info.Frontier,
				LastTick:  info.LastTick,
				Members:   info.Members,
			})
		}
		b, _ := json.Marshal(msg)
		return b
	}

	var changesMsg []byte
	if len(w.stepChanges) > 0 {
		cm := observerproto.ChangesMsg{
			Type:            "CHANGES",
			ProtocolVersion: observerproto.Version,
			Tick:            tick,
			Changes:         make([]observerproto.BlockChange, 0, len(w.stepChanges)),
		}
		for _, c := range w.stepChanges {
			cm.Changes = append(cm.Changes, observerproto.BlockChange{
				Pos:    c.Pos.ToArray(),
				From:   c.From.String(),
				To:     c.To.String(),
				Actor:  c.Actor,
				Reason: c.Reason,
			})
		}
		changesMsg, _ = json.Marshal(cm)
	}

	// Sessions that want the same frontier limit share one encoding.
	encoded := map[int][]byte{}
	for _, c := range w.observers {
		b, ok := encoded[c.cfg.frontierLimit]
		if !ok {
			b = tickMsg(c.cfg.frontierLimit)
			encoded[c.cfg.frontierLimit] = b
		}
		sendLatest(c.tickOut, b)

		if c.cfg.changes && changesMsg != nil {
			select {
			case c.dataOut <- changesMsg:
			default:
				// Slow observer; changes are best-effort.
			}
		}
	}
}

// ChunkVoxels is a copy of one loaded chunk's blocks, x fastest, then z,
// then y, with the palette they index into.
type ChunkVoxels struct {
	Tick    uint64
	CX, CZ  int
	Height  int
	Palette []string
	Blocks  []uint16
}

type ChunkVoxelsRequest struct {
	Key  ChunkKey
	Resp chan ChunkVoxelsResponse
}

type ChunkVoxelsResponse struct {
	Voxels ChunkVoxels
	Err    error
}

// ChunkVoxels is answered between ticks.
func (w *World) ChunkVoxels(ctx context.Context, cx, cz int) (ChunkVoxels, error) {
	resp := make(chan ChunkVoxelsResponse, 1)
	r, err := roundTrip(ctx, w.voxelReq, ChunkVoxelsRequest{Key: ChunkKey{CX: cx, CZ: cz}, Resp: resp}, resp)
	if err != nil {
		return ChunkVoxels{}, err
	}
	return r.Voxels, r.Err
}

func (w *World) handleChunkVoxelsReq(req ChunkVoxelsRequest) {
	if req.Resp == nil {
		return
	}
	var resp ChunkVoxelsResponse
	ch := w.chunks.chunks[req.Key]
	if ch == nil || !w.chunks.loaded[req.Key] {
		resp.Err = fmt.Errorf("%w: chunk %d,%d", ErrNotLoaded, req.Key.CX, req.Key.CZ)
	} else {
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		resp.Voxels = ChunkVoxels{
			Tick:    w.tick.Load(),
			CX:      ch.CX,
			CZ:      ch.CZ,
			Height:  ch.Height,
			Palette: w.chunks.pal.Strings(),
			Blocks:  blocks,
		}
	}
	select {
	case req.Resp <- resp:
	default:
	}
}
