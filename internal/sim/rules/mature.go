package rules

import (
	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/neighborhood"
	"festering.ai/internal/sim/rng"
)

// MatureRule fires for a material in From when When holds and a draw
// succeeds with probability Chance. A Halt rule ends evaluation with no
// result when it fires.
type MatureRule struct {
	Name   string
	From   []block.ID
	When   func(neighborhood.Features) bool
	Chance float64
	To     block.ID
	Halt   bool
}

func (m MatureRule) matches(id block.ID) bool {
	for _, f := range m.From {
		if f == id {
			return true
		}
	}
	return false
}

func always(neighborhood.Features) bool { return true }

// Evaluation order matters: the first rule that fires wins, and a draw is
// taken only for rules whose condition holds.
func defaultMaturation() []MatureRule {
	return []MatureRule{
		{Name: "crimson_nylium", From: []block.ID{block.Netherrack}, Chance: 0.3, To: block.CrimsonNylium,
			When: func(f neighborhood.Features) bool { return f.CrimsonInfluence }},
		{Name: "warped_nylium", From: []block.ID{block.Netherrack}, Chance: 0.3, To: block.WarpedNylium,
			When: func(f neighborhood.Features) bool { return f.WarpedInfluence }},
		{Name: "netherrack_magma", From: []block.ID{block.Netherrack}, Chance: 0.15, To: block.MagmaBlock,
			When: func(f neighborhood.Features) bool { return f.Lava }},
		{Name: "soul_sand_sink", From: []block.ID{block.SoulSoil}, Chance: 0.25, To: block.SoulSand,
			When: func(f neighborhood.Features) bool { return f.SoulSand }},
		{Name: "polish_basalt", From: []block.ID{block.Basalt}, Chance: 0.2, To: block.PolishedBasalt,
			When: func(f neighborhood.Features) bool { return f.PolishedStone }},
		{Name: "basalt_blackstone", From: []block.ID{block.Basalt}, Chance: 0.15, To: block.Blackstone,
			When: func(f neighborhood.Features) bool { return f.Blackstone }},
		{Name: "gild_blackstone", From: []block.ID{block.Blackstone}, Chance: 0.1, To: block.GildedBlackstone,
			When: func(f neighborhood.Features) bool { return f.Gold }},
		{Name: "polish_blackstone", From: []block.ID{block.Blackstone}, Chance: 0.2, To: block.PolishedBlackstone,
			When: func(f neighborhood.Features) bool { return f.PolishedStone }},
		{Name: "wart_shroomlight", From: []block.ID{block.NetherWartBlock, block.WarpedWartBlock}, Chance: 0.05, To: block.Shroomlight,
			When: always},
		// Vegetation on nylium is placed by the maturation pass, not here.
		{Name: "nylium_rest", From: []block.ID{block.CrimsonNylium}, Chance: 0.2, Halt: true,
			When: func(f neighborhood.Features) bool { return f.AirAbove }},
		{Name: "magma_crust", From: []block.ID{block.MagmaBlock}, Chance: 0.3, To: block.Blackstone,
			When: func(f neighborhood.Features) bool { return f.Water }},
		{Name: "lava_cooling", From: []block.ID{block.Lava}, Chance: 0.05, To: block.MagmaBlock,
			When: func(f neighborhood.Features) bool { return f.CoolingSurface }},
		{Name: "magma_melt_pooled", From: []block.ID{block.MagmaBlock}, Chance: 0.25, To: block.Lava,
			When: func(f neighborhood.Features) bool { return f.LavaCount >= 2 }},
		{Name: "magma_melt", From: []block.ID{block.MagmaBlock}, Chance: 0.12, To: block.Lava,
			When: func(f neighborhood.Features) bool { return f.LavaCount == 1 }},
		{Name: "netherrack_heat", From: []block.ID{block.Netherrack}, Chance: 0.2, To: block.MagmaBlock,
			When: func(f neighborhood.Features) bool { return f.LavaCount >= 2 }},
		{Name: "blackstone_heat", From: []block.ID{block.Blackstone, block.PolishedBlackstone}, Chance: 0.1, To: block.MagmaBlock,
			When: func(f neighborhood.Features) bool { return f.LavaCount >= 1 }},
	}
}

// MaturationRules returns a copy of the ordered rule list.
func (t *Table) MaturationRules() []MatureRule {
	out := make([]MatureRule, len(t.maturation))
	copy(out, t.maturation)
	return out
}

// Mature evaluates the maturation rules for in against f.
func (t *Table) Mature(in block.State, f neighborhood.Features, r rng.Source) (block.State, bool) {
	for _, m := range t.maturation {
		if !m.matches(in.ID) || !m.When(f) {
			continue
		}
		if !rng.Chance(r, m.Chance) {
			continue
		}
		if m.Halt {
			return block.State{}, false
		}
		return block.Of(m.To), true
	}
	return block.State{}, false
}
