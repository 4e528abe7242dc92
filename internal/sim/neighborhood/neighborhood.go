// Package neighborhood summarizes the six face neighbors of a voxel into
// the features that maturation rules test.
package neighborhood

import (
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/voxel"
)

// Reader is the read side of the world.
type Reader interface {
	Block(p voxel.Pos) block.State
}

// Features is computed once per maturation attempt and then discarded.
type Features struct {
	CrimsonInfluence bool
	WarpedInfluence  bool
	Lava             bool
	LavaCount        int
	Magma            bool
	MagmaCount       int
	SoulSand         bool
	PolishedStone    bool
	Blackstone       bool
	Gold             bool
	AirAbove         bool
	Water            bool
	CoolingSurface   bool
}

var (
	crimson = set(block.CrimsonStem, block.CrimsonFungus, block.CrimsonNylium, block.CrimsonRoots, block.NetherWartBlock)
	warped  = set(block.WarpedStem, block.WarpedFungus, block.WarpedNylium, block.WarpedRoots, block.WarpedWartBlock)
	// Polished stone and blackstone overlap on POLISHED_BLACKSTONE.
	polished   = set(block.PolishedBasalt, block.PolishedBlackstone, block.PolishedBlackstoneBricks)
	blackstone = set(block.Blackstone, block.PolishedBlackstone)
	gold       = set(block.GoldBlock, block.NetherGoldOre, block.GildedBlackstone)
)

// Analyze visits each face neighbor of p exactly once.
func Analyze(r Reader, p voxel.Pos) Features {
	var f Features
	for _, d := range voxel.Faces {
		n := r.Block(p.Offset(d))
		f.observe(d, n)
	}
	return f
}

func (f *Features) observe(d voxel.Dir, n block.State) {
	id := n.ID
	if crimson[id] {
		f.CrimsonInfluence = true
	}
	if warped[id] {
		f.WarpedInfluence = true
	}
	switch id {
	case block.Lava:
		f.Lava = true
		f.LavaCount++
	case block.MagmaBlock:
		f.Magma = true
		f.MagmaCount++
	case block.SoulSand:
		f.SoulSand = true
	case block.Water:
		f.Water = true
	}
	if polished[id] {
		f.PolishedStone = true
	}
	if blackstone[id] {
		f.Blackstone = true
	}
	if gold[id] {
		f.Gold = true
	}
	if n.IsAir() && d == voxel.Up {
		f.AirAbove = true
	}
	if n.IsAir() || id == block.Water {
		f.CoolingSurface = true
	}
}

func set(ids ...block.ID) map[block.ID]bool {
	m := make(map[block.ID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
