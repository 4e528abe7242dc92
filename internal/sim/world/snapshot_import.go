package world

import (
	"fmt"

	"festering.ai/internal/persistence/snapshot"
)

func (w *World) validateSnapshotImport(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Seed != s.Seed {
		return fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.Height != s.Height {
		return fmt.Errorf("snapshot height mismatch: cfg=%d snap=%d", w.cfg.Height, s.Height)
	}
	for i, ch := range s.Chunks {
		if ch.Height != s.Height || len(ch.Blocks) != ChunkSize*ChunkSize*s.Height {
			return fmt.Errorf("snapshot chunk %d (%d,%d): bad size", i, ch.CX, ch.CZ)
		}
		for _, b := range ch.Blocks {
			if int(b) >= len(s.Palette) {
				return fmt.Errorf("snapshot chunk %d (%d,%d): block %d outside palette", i, ch.CX, ch.CZ, b)
			}
		}
	}
	return nil
}

// applySnapshotConfig adopts the worldgen parameters the snapshot was
// generated with, so chunks generated after resume match.
func (w *World) applySnapshotConfig(s snapshot.SnapshotV1) {
	if s.TickRate > 0 {
		w.cfg.TickRateHz = s.TickRate
	}
	w.cfg.ChunkRadius = s.ChunkRadius
	if s.SeaLevel > 0 {
		w.cfg.SeaLevel = s.SeaLevel
	}
	if s.BaseHeight > 0 {
		w.cfg.BaseHeight = s.BaseHeight
	}
	w.cfg.Amplitude = s.Amplitude
	if s.NoiseScale > 0 {
		w.cfg.NoiseScale = s.NoiseScale
	}
	w.cfg.TreePermille = s.TreePermille
	w.cfg.FlowerPermille = s.FlowerPermille
	if s.SpreadIntervalTicks > 0 {
		w.cfg.SpreadIntervalTicks = s.SpreadIntervalTicks
	}
}

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if err := w.validateSnapshotImport(s); err != nil {
		return err
	}
	pal, err := PaletteFromStrings(s.Palette)
	if err != nil {
		return fmt.Errorf("snapshot palette: %w", err)
	}

	w.applySnapshotConfig(s)
	w.rebuild()
	w.chunks.pal = pal
	for _, c := range s.Chunks {
		ch := newChunk(c.CX, c.CZ, c.Height)
		copy(ch.Blocks, c.Blocks)
		ch.dirty = true
		_ = ch.Digest()
		w.chunks.chunks[ChunkKey{CX: c.CX, CZ: c.CZ}] = ch
	}
	for _, k := range s.Loaded {
		// Loading a key without stored blocks generates it fresh.
		w.chunks.LoadChunk(ChunkKey{CX: k.CX, CZ: k.CZ})
	}
	if err := w.reg.Restore(SourceRecords(s)); err != nil {
		return fmt.Errorf("snapshot sources: %w", err)
	}
	w.engine.SetCursor(s.SourceCursor)
	w.tick.Store(s.Header.Tick + 1)
	w.publishMetrics(0)
	return nil
}
