// Package simtest provides an in-memory world for driving the engine
// packages in tests without the chunk store or the world loop.
package simtest

import (
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/voxel"
)

// Write records one SetBlock call.
type Write struct {
	Pos  voxel.Pos
	From block.State
	To   block.State
}

// Grid is a map-backed world. Positions never written fall back to the
// background function.
type Grid struct {
	blocks     map[voxel.Pos]block.State
	background func(voxel.Pos) block.State
	unloaded   func(voxel.Pos) bool

	Writes []Write
}

func NewGrid(background func(voxel.Pos) block.State) *Grid {
	if background == nil {
		background = func(voxel.Pos) block.State { return block.Of(block.Air) }
	}
	return &Grid{blocks: map[voxel.Pos]block.State{}, background: background}
}

// Flat fills every y <= surfaceY with ground and leaves air above.
func Flat(ground block.ID, surfaceY int) *Grid {
	return NewGrid(func(p voxel.Pos) block.State {
		if p.Y <= surfaceY {
			return block.Of(ground)
		}
		return block.Of(block.Air)
	})
}

// Uniform fills all of space with one material.
func Uniform(id block.ID) *Grid {
	return NewGrid(func(voxel.Pos) block.State { return block.Of(id) })
}

func (g *Grid) Block(p voxel.Pos) block.State {
	if s, ok := g.blocks[p]; ok {
		return s
	}
	return g.background(p)
}

func (g *Grid) SetBlock(p voxel.Pos, s block.State) {
	g.Writes = append(g.Writes, Write{Pos: p, From: g.Block(p), To: s})
	g.blocks[p] = s
}

func (g *Grid) Loaded(p voxel.Pos) bool {
	return g.unloaded == nil || !g.unloaded(p)
}

// Put sets a block without recording a write.
func (g *Grid) Put(p voxel.Pos, id block.ID) { g.blocks[p] = block.Of(id) }

func (g *Grid) PutState(p voxel.Pos, s block.State) { g.blocks[p] = s }

// Unload marks every position matching pred as not resident.
func (g *Grid) Unload(pred func(voxel.Pos) bool) { g.unloaded = pred }

// ResetWrites clears the write log.
func (g *Grid) ResetWrites() { g.Writes = nil }

// Count returns how many positions in the box [min,max] hold id.
func (g *Grid) Count(min, max voxel.Pos, id block.ID) int {
	n := 0
	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				if g.Block(voxel.Pos{X: x, Y: y, Z: z}).ID == id {
					n++
				}
			}
		}
	}
	return n
}
