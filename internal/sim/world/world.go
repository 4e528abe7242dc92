package world

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/engine"
	"festering.ai/internal/sim/frontier"
	"festering.ai/internal/sim/maturation"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/rules"
	"festering.ai/internal/sim/terrain"
	"festering.ai/internal/sim/voxel"
)

var (
	ErrNotLoaded = errors.New("position not loaded")
	ErrStopped   = errors.New("world loop not running")
)

// World is a single-threaded authoritative simulation of the block store
// and the sources corrupting it.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg   WorldConfig
	runID string

	tick atomic.Uint64

	chunks *ChunkStore
	reg    *registry.Registry
	spread *frontier.Engine
	engine *engine.Engine

	ignite   chan IgniteRequest
	register chan RegisterRequest
	remove   chan RemoveRequest
	burst    chan BurstRequest
	arrival  chan ArrivalRequest
	chunkReq chan ChunkRequest
	listReq  chan SourcesRequest
	voxelReq chan ChunkVoxelsRequest
	admin    chan adminSnapshotReq
	stop     chan struct{}

	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	observers     map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional sinks (may be nil). Consumers run off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
	sourceSink   chan<- []registry.Record
	metricsSink  MetricsSink

	metrics atomic.Value // WorldMetrics

	// Per-tick scratch, reset at the end of every step.
	stepTick     uint64
	stepChanges  []Change
	stepRequests []RecordedRequest
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64             `json:"tick"`
	Requests []RecordedRequest  `json:"requests,omitempty"`
	Cycle    *engine.TickReport `json:"cycle,omitempty"`
	Changes  int                `json:"changes"`
	Digest   string             `json:"digest"`
}

// RecordedRequest is an admin or arrival request as applied by the loop.
type RecordedRequest struct {
	Kind     string `json:"kind"`
	Pos      [3]int `json:"pos"`
	Strength int    `json:"strength,omitempty"`
	Size     int    `json:"size,omitempty"`
	Result   string `json:"result"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK"
	Pos    [3]int `json:"pos"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// Change is one voxel write made during a tick.
type Change struct {
	Actor  string
	Pos    voxel.Pos
	From   block.State
	To     block.State
	Reason string
}

func SourceActor(center voxel.Pos) string {
	return fmt.Sprintf("source@%d,%d,%d", center.X, center.Y, center.Z)
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if cfg.ID == "" {
		return nil, fmt.Errorf("world id required")
	}
	w := &World{
		cfg:           cfg,
		runID:         uuid.NewString(),
		ignite:        make(chan IgniteRequest, 64),
		register:      make(chan RegisterRequest, 64),
		remove:        make(chan RemoveRequest, 64),
		burst:         make(chan BurstRequest, 64),
		arrival:       make(chan ArrivalRequest, 256),
		chunkReq:      make(chan ChunkRequest, 64),
		listReq:       make(chan SourcesRequest, 64),
		voxelReq:      make(chan ChunkVoxelsRequest, 64),
		admin:         make(chan adminSnapshotReq, 16),
		stop:          make(chan struct{}),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		observers:     map[string]*observerClient{},
	}
	w.rebuild()
	w.chunks.LoadArea(0, 0, cfg.ChunkRadius)
	w.publishMetrics(0)
	return w, nil
}

// rebuild recreates the block store and engine from w.cfg.
func (w *World) rebuild() {
	w.chunks = NewChunkStore(terrain.New(w.cfg.terrainConfig()), w.cfg.Height)
	w.reg = registry.New(w.cfg.registryConfig())
	w.spread = frontier.New(rules.Default(), w.cfg.frontierConfig())
	w.spread.OnChange(w.recordSourceChange)
	w.engine = engine.New(w.spread, maturation.New(w.spread, w.cfg.maturationConfig()), w.cfg.engineConfig())
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// RunID identifies this process's run of the world in snapshot headers.
func (w *World) RunID() string { return w.runID }

// BlockPalette lists every material the rule table knows about. The table
// is immutable, so it is safe to call from any goroutine.
func (w *World) BlockPalette() []string {
	ids := w.spread.Rules().Materials()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
func (w *World) SetSourceSink(ch chan<- []registry.Record)     { w.sourceSink = ch }
func (w *World) SetMetricsSink(m MetricsSink)                  { w.metricsSink = m }

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) recordSourceChange(c frontier.Change) {
	w.recordChange(Change{
		Actor:  SourceActor(c.Source),
		Pos:    c.Pos,
		From:   c.From,
		To:     c.To,
		Reason: string(c.Cause),
	})
	if w.metricsSink != nil {
		w.metricsSink.ObserveChange(string(c.Cause))
	}
}

func (w *World) recordChange(c Change) {
	w.stepChanges = append(w.stepChanges, c)
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   w.stepTick,
		Actor:  c.Actor,
		Action: "SET_BLOCK",
		Pos:    c.Pos.ToArray(),
		From:   c.From.String(),
		To:     c.To.String(),
		Reason: c.Reason,
	})
}

// auditedStore routes writes made outside the engine (portal lighting,
// admin edits) through the audit trail.
type auditedStore struct {
	w      *World
	actor  string
	reason string
}

func (a auditedStore) Block(p voxel.Pos) block.State { return a.w.chunks.Block(p) }
func (a auditedStore) Loaded(p voxel.Pos) bool        { return a.w.chunks.Loaded(p) }

func (a auditedStore) SetBlock(p voxel.Pos, s block.State) {
	if !a.w.chunks.Loaded(p) {
		return
	}
	from := a.w.chunks.Block(p)
	if from == s {
		return
	}
	a.w.chunks.SetBlock(p, s)
	if a.w.chunks.Block(p) != s {
		return
	}
	a.w.recordChange(Change{Actor: a.actor, Pos: p, From: from, To: s, Reason: a.reason})
}
