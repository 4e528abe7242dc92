package world

import (
	"context"
	"time"

	"festering.ai/internal/sim/engine"
	"festering.ai/internal/sim/rng"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending Batch
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.chunkReq:
			pending.Chunks = append(pending.Chunks, req)
		case req := <-w.ignite:
			pending.Ignites = append(pending.Ignites, req)
		case req := <-w.register:
			pending.Registers = append(pending.Registers, req)
		case req := <-w.remove:
			pending.Removes = append(pending.Removes, req)
		case req := <-w.arrival:
			pending.Arrivals = append(pending.Arrivals, req)
		case req := <-w.burst:
			pending.Bursts = append(pending.Bursts, req)
		case req := <-w.listReq:
			w.handleSourcesReq(req)
		case req := <-w.voxelReq:
			w.handleChunkVoxelsReq(req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.step(pending)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pending.reset()
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is intended for deterministic replays and
// tests; it must not be called while Run is active.
func (w *World) StepOnce(b Batch) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.step(b)
	return tick, digest
}

func (w *World) step(b Batch) string {
	start := time.Now()
	tick := w.tick.Load()
	w.stepTick = tick

	// One source of randomness per tick, so a resumed world replays the
	// same draws.
	r := rng.ForTick(w.cfg.Seed, tick)

	w.applyBatch(b, r)

	var cycle *engine.TickReport
	if tick%uint64(w.cfg.SpreadIntervalTicks) == 0 && w.reg.Len() > 0 {
		cycleStart := time.Now()
		rep := w.engine.ProcessTick(w.chunks, w.reg, tick, r)
		cycle = &rep
		if w.metricsSink != nil {
			removed, skipped := 0, 0
			for _, s := range rep.Sources {
				if s.Removed {
					removed++
				}
				if s.Skipped {
					skipped++
				}
			}
			w.metricsSink.ObserveCycle(time.Since(cycleStart), removed, skipped)
		}
	}

	digest := w.stateDigest(tick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:     tick,
			Requests: w.stepRequests,
			Cycle:    cycle,
			Changes:  len(w.stepChanges),
			Digest:   digest,
		})
	}

	w.broadcastObservers(tick, cycle)

	if every := uint64(w.cfg.SnapshotEveryTicks); every > 0 && tick > 0 && tick%every == 0 && w.snapshotSink != nil {
		select {
		case w.snapshotSink <- w.ExportSnapshot(tick):
		default:
			// Writer still busy with the previous one; the next interval retries.
		}
	}
	if every := uint64(w.cfg.SaveSourcesEveryTicks); every > 0 && tick%every == 0 && w.sourceSink != nil {
		// A failed hand-off leaves the registry dirty for the next attempt.
		_ = w.reg.Save(context.Background(), sinkStore{ch: w.sourceSink})
	}

	w.stepChanges = w.stepChanges[:0]
	w.stepRequests = nil
	w.tick.Add(1)
	w.publishMetrics(time.Since(start))
	return digest
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
