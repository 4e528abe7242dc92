package world

import (
	"festering.ai/internal/persistence/snapshot"
	"festering.ai/internal/sim/registry"
)

// ExportSnapshot must be called from the world loop goroutine, or while
// the loop is not running.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	keys := w.chunks.ChunkKeys()
	chunks := make([]snapshot.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := w.chunks.chunks[k]
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		chunks = append(chunks, snapshot.ChunkV1{
			CX:     ch.CX,
			CZ:     ch.CZ,
			Height: ch.Height,
			Blocks: blocks,
		})
	}
	loadedKeys := w.chunks.LoadedChunkKeys()
	loaded := make([]snapshot.ChunkKeyV1, 0, len(loadedKeys))
	for _, k := range loadedKeys {
		loaded = append(loaded, snapshot.ChunkKeyV1{CX: k.CX, CZ: k.CZ})
	}

	recs := w.reg.Records()
	sources := make([]snapshot.SourceV1, 0, len(recs))
	for _, r := range recs {
		sources = append(sources, snapshot.SourceV1{
			Center:   r.Center,
			Strength: r.Strength,
			LastTick: r.LastTick,
			Frontier: r.Frontier,
		})
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			RunID:   w.runID,
			Tick:    nowTick,
		},
		Seed:                w.cfg.Seed,
		TickRate:            w.cfg.TickRateHz,
		Height:              w.cfg.Height,
		ChunkRadius:         w.cfg.ChunkRadius,
		SeaLevel:            w.cfg.SeaLevel,
		BaseHeight:          w.cfg.BaseHeight,
		Amplitude:           w.cfg.Amplitude,
		NoiseScale:          w.cfg.NoiseScale,
		TreePermille:        w.cfg.TreePermille,
		FlowerPermille:      w.cfg.FlowerPermille,
		SpreadIntervalTicks: w.cfg.SpreadIntervalTicks,
		SourceCursor:        w.engine.Cursor(),
		Palette:             w.chunks.pal.Strings(),
		Chunks:              chunks,
		Loaded:              loaded,
		Sources:             sources,
	}
}

// SourceRecords converts snapshot sources into registry records.
func SourceRecords(s snapshot.SnapshotV1) []registry.Record {
	out := make([]registry.Record, 0, len(s.Sources))
	for _, src := range s.Sources {
		out = append(out, registry.Record{
			Center:   src.Center,
			Strength: src.Strength,
			LastTick: src.LastTick,
			Frontier: src.Frontier,
		})
	}
	return out
}
