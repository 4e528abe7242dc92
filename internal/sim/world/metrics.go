package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Sources         int `json:"sources"`
	FrontierVoxels  int `json:"frontier_voxels"`
	LoadedChunks    int `json:"loaded_chunks"`
	GeneratedChunks int `json:"generated_chunks"`
	PaletteSize     int `json:"palette_size"`
	Observers       int `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Ignite   int `json:"ignite"`
	Register int `json:"register"`
	Remove   int `json:"remove"`
	Burst    int `json:"burst"`
	Arrival  int `json:"arrival"`
	Chunks   int `json:"chunks"`
}

// MetricsSink receives counters and gauges from the loop. Implementations
// must not block.
type MetricsSink interface {
	SetGauges(tick uint64, sources, frontier, loadedChunks, observers int)
	ObserveChange(cause string)
	ObserveCycle(d time.Duration, removed, skipped int)
	ObserveBurst(n int)
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(step time.Duration) {
	m := WorldMetrics{
		Tick:            w.tick.Load(),
		Sources:         w.reg.Len(),
		FrontierVoxels:  w.reg.FrontierSize(),
		LoadedChunks:    len(w.chunks.loaded),
		GeneratedChunks: len(w.chunks.chunks),
		PaletteSize:     w.chunks.pal.Len(),
		Observers:       len(w.observers),
		QueueDepths: QueueDepths{
			Ignite:   len(w.ignite),
			Register: len(w.register),
			Remove:   len(w.remove),
			Burst:    len(w.burst),
			Arrival:  len(w.arrival),
			Chunks:   len(w.chunkReq),
		},
		StepMS: float64(step.Microseconds()) / 1000,
	}
	w.metrics.Store(m)
	if w.metricsSink != nil {
		w.metricsSink.SetGauges(m.Tick, m.Sources, m.FrontierVoxels, m.LoadedChunks, m.Observers)
	}
}
