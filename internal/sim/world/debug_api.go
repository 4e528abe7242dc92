package world

import (
	"errors"
	"fmt"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/voxel"
)

// ---- Debug/Test Helpers ----
//
// These let black-box tests in sibling packages (internal/sim/worldtest)
// set up preconditions without reaching into world internals.
//
// They are NOT safe to call concurrently with Run(). Use them only from
// the goroutine driving the world via StepOnce().

// DebugSetBlock writes a block and records it in the audit trail under the
// "debug" actor.
func (w *World) DebugSetBlock(pos voxel.Pos, blockName string) error {
	if w == nil {
		return errors.New("nil world")
	}
	st, err := block.Parse(blockName)
	if err != nil {
		return err
	}
	if !w.chunks.Loaded(pos) || pos.Y < 0 || pos.Y >= w.cfg.Height {
		return fmt.Errorf("%w: %s", ErrNotLoaded, pos)
	}
	auditedStore{w: w, actor: "debug", reason: "debug"}.SetBlock(pos, st)
	return nil
}

func (w *World) DebugGetBlock(pos voxel.Pos) (block.State, error) {
	if w == nil {
		return block.State{}, errors.New("nil world")
	}
	if !w.chunks.Loaded(pos) {
		return block.State{}, fmt.Errorf("%w: %s", ErrNotLoaded, pos)
	}
	return w.chunks.Block(pos), nil
}

// DebugStateDigest returns the world digest for the given tick label.
func (w *World) DebugStateDigest(nowTick uint64) string {
	if w == nil {
		return ""
	}
	return w.stateDigest(nowTick)
}
