package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"festering.ai/internal/protocol"
	"festering.ai/internal/sim/voxel"
	"festering.ai/internal/sim/world"
)

const maxAdminBody = 4 << 10

// adminAPI serves the local-only control endpoints. Every mutation goes
// through the world loop's request channels and lands on the next tick.
type adminAPI struct {
	world   *world.World
	log     *log.Logger
	timeout time.Duration
}

func newAdminAPI(w *world.World, logger *log.Logger) *adminAPI {
	return &adminAPI{world: w, log: logger, timeout: 5 * time.Second}
}

func (a *adminAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", a.guard(http.MethodGet, a.handleState))
	mux.HandleFunc("/admin/v1/sources", a.guard(http.MethodGet, a.handleSources))
	mux.HandleFunc("/admin/v1/ignite", a.guard(http.MethodPost, a.handleIgnite))
	mux.HandleFunc("/admin/v1/register", a.guard(http.MethodPost, a.handleRegister))
	mux.HandleFunc("/admin/v1/remove", a.guard(http.MethodPost, a.handleRemove))
	mux.HandleFunc("/admin/v1/burst", a.guard(http.MethodPost, a.handleBurst))
	mux.HandleFunc("/admin/v1/arrival", a.guard(http.MethodPost, a.handleArrival))
	mux.HandleFunc("/admin/v1/chunks", a.guard(http.MethodPost, a.handleChunks))
	mux.HandleFunc("/admin/v1/snapshot", a.guard(http.MethodPost, a.handleSnapshot))
}

func (a *adminAPI) guard(method string, h func(ctx context.Context, rw http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()
		h(ctx, rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (a *adminAPI) writeError(rw http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(rw, http.StatusServiceUnavailable, protocol.ErrorResponse{Code: protocol.ErrWorldBusy, Message: err.Error()})
		return
	}
	resp := protocol.NewErrorResponse(err)
	if resp.Code == protocol.ErrInternal {
		a.log.Printf("admin: %v", err)
	}
	writeJSON(rw, protocol.HTTPStatus(resp.Code), resp)
}

func badRequest(rw http.ResponseWriter, msg string) {
	writeJSON(rw, http.StatusBadRequest, protocol.ErrorResponse{Code: protocol.ErrBadRequest, Message: msg})
}

// readRequest decodes a schema-checked admin body.
func (a *adminAPI) readRequest(rw http.ResponseWriter, r *http.Request) (protocol.AdminRequest, bool) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err != nil {
		badRequest(rw, err.Error())
		return protocol.AdminRequest{}, false
	}
	req, err := protocol.DecodeAdminRequest(b)
	if err != nil {
		a.writeError(rw, err)
		return protocol.AdminRequest{}, false
	}
	return req, true
}

func (a *adminAPI) handleState(_ context.Context, rw http.ResponseWriter, _ *http.Request) {
	cfg := a.world.Config()
	writeJSON(rw, http.StatusOK, struct {
		WorldID  string             `json:"world_id"`
		RunID    string             `json:"run_id"`
		Seed     int64              `json:"seed"`
		Tick     uint64             `json:"tick"`
		Interval int                `json:"spread_interval_ticks"`
		Metrics  world.WorldMetrics `json:"metrics"`
	}{
		WorldID:  a.world.ID(),
		RunID:    a.world.RunID(),
		Seed:     cfg.Seed,
		Tick:     a.world.CurrentTick(),
		Interval: cfg.SpreadIntervalTicks,
		Metrics:  a.world.Metrics(),
	})
}

// handleSources lists sources; ?members=N includes up to N frontier
// positions per source (-1 for all).
func (a *adminAPI) handleSources(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	members := 0
	if v := r.URL.Query().Get("members"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(rw, "members: "+err.Error())
			return
		}
		members = n
	}
	srcs, err := a.world.Sources(ctx, members)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"tick": a.world.CurrentTick(), "sources": srcs})
}

func (a *adminAPI) handleIgnite(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	req, ok := a.readRequest(rw, r)
	if !ok {
		return
	}
	resp, err := a.world.Ignite(ctx, voxel.FromArray(req.Pos))
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"frame": resp.Frame, "source": resp.Source})
}

func (a *adminAPI) handleRegister(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	req, ok := a.readRequest(rw, r)
	if !ok {
		return
	}
	if req.Strength == 0 {
		badRequest(rw, "strength required")
		return
	}
	src, err := a.world.RegisterSource(ctx, voxel.FromArray(req.Pos), req.Strength)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"source": src})
}

func (a *adminAPI) handleRemove(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	req, ok := a.readRequest(rw, r)
	if !ok {
		return
	}
	if err := a.world.RemoveSource(ctx, voxel.FromArray(req.Pos)); err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func (a *adminAPI) handleBurst(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	req, ok := a.readRequest(rw, r)
	if !ok {
		return
	}
	resp, err := a.world.Burst(ctx, voxel.FromArray(req.Pos), req.Size)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *adminAPI) handleArrival(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	req, ok := a.readRequest(rw, r)
	if !ok {
		return
	}
	resp, err := a.world.Arrive(ctx, voxel.FromArray(req.Pos))
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

// handleChunks loads (or with unload=true unloads) the chunks within
// radius of (cx,cz).
func (a *adminAPI) handleChunks(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var vals [3]int
	for i, k := range []string{"cx", "cz", "radius"} {
		n, err := strconv.Atoi(q.Get(k))
		if err != nil {
			badRequest(rw, k+": "+err.Error())
			return
		}
		vals[i] = n
	}
	unload, _ := strconv.ParseBool(q.Get("unload"))
	resp, err := a.world.LoadChunks(ctx, vals[0], vals[1], vals[2], unload)
	if err != nil {
		badRequest(rw, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *adminAPI) handleSnapshot(ctx context.Context, rw http.ResponseWriter, _ *http.Request) {
	tick, err := a.world.RequestSnapshot(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
}
