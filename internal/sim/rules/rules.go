// Package rules holds the fixed corruption rule table: first-pass material
// substitutions, immunity, and the ordered maturation rules.
package rules

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/rng"
)

//go:embed table.yaml
var tableYAML []byte

// AlternativeChance is the probability that a simple substitution is
// swapped for another member of its equivalence class.
const AlternativeChance = 0.20

// Kind tags a transform variant.
type Kind uint8

const (
	Simple Kind = iota + 1
	PreserveAxis
	PreserveSlabProps
	PreserveStairProps
)

func (k Kind) String() string {
	switch k {
	case Simple:
		return "simple"
	case PreserveAxis:
		return "preserve_axis"
	case PreserveSlabProps:
		return "preserve_slab"
	case PreserveStairProps:
		return "preserve_stairs"
	default:
		return "unknown"
	}
}

// Transform is one rule: the output material and which input properties
// carry over.
type Transform struct {
	Kind Kind
	To   block.ID
}

// Apply builds the output state for in.
func (t Transform) Apply(in block.State) block.State {
	out := block.Of(t.To)
	switch t.Kind {
	case PreserveAxis:
		out.Props.Axis = in.Props.Axis
	case PreserveSlabProps:
		out.Props.Slab = in.Props.Slab
		out.Props.Waterlogged = in.Props.Waterlogged
	case PreserveStairProps:
		out.Props.Facing = in.Props.Facing
		out.Props.Half = in.Props.Half
		out.Props.Shape = in.Props.Shape
		out.Props.Waterlogged = in.Props.Waterlogged
	}
	return out
}

type Alternative struct {
	Name    string
	Members []block.ID
	Choices []block.ID
}

// Table is immutable after construction and safe to share.
type Table struct {
	transforms   map[block.ID]Transform
	alternatives map[block.ID]Alternative
	protected    map[block.ID]bool
	corrupted    map[block.ID]bool
	established  map[block.ID]bool
	markers      map[block.ID]bool
	maturation   []MatureRule
}

type tableFile struct {
	Simple         map[string]string `yaml:"simple"`
	PreserveAxis   map[string]string `yaml:"preserve_axis"`
	PreserveSlab   map[string]string `yaml:"preserve_slab"`
	PreserveStairs map[string]string `yaml:"preserve_stairs"`
	Alternatives   []struct {
		Name    string   `yaml:"name"`
		Members []string `yaml:"members"`
		Choices []string `yaml:"choices"`
	} `yaml:"alternatives"`
	Protected   []string `yaml:"protected"`
	Corrupted   []string `yaml:"corrupted"`
	Established []string `yaml:"established"`
	Markers     []string `yaml:"markers"`
}

// Parse builds a table from a YAML document in the embedded format.
func Parse(raw []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("rule table: %w", err)
	}
	t := &Table{
		transforms:   map[block.ID]Transform{},
		alternatives: map[block.ID]Alternative{},
		protected:    idSet(f.Protected),
		corrupted:    idSet(f.Corrupted),
		established:  idSet(f.Established),
		markers:      idSet(f.Markers),
		maturation:   defaultMaturation(),
	}
	// Property-preserving rules win over simple ones for the same input.
	groups := []struct {
		kind Kind
		m    map[string]string
	}{
		{Simple, f.Simple},
		{PreserveAxis, f.PreserveAxis},
		{PreserveSlabProps, f.PreserveSlab},
		{PreserveStairProps, f.PreserveStairs},
	}
	for _, g := range groups {
		for from, to := range g.m {
			if from == "" || to == "" {
				return nil, fmt.Errorf("rule table: %s: empty material in %q -> %q", g.kind, from, to)
			}
			t.transforms[block.ID(from)] = Transform{Kind: g.kind, To: block.ID(to)}
		}
	}
	for _, a := range f.Alternatives {
		if len(a.Choices) == 0 {
			return nil, fmt.Errorf("rule table: alternative %q has no choices", a.Name)
		}
		alt := Alternative{Name: a.Name, Members: ids(a.Members), Choices: ids(a.Choices)}
		for _, m := range alt.Members {
			if prev, ok := t.alternatives[m]; ok {
				return nil, fmt.Errorf("rule table: %s is in alternatives %q and %q", m, prev.Name, a.Name)
			}
			t.alternatives[m] = alt
		}
	}
	if len(t.transforms) == 0 {
		return nil, fmt.Errorf("rule table: no transforms")
	}
	return t, nil
}

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(tableYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Rule returns the transform registered for id.
func (t *Table) Rule(id block.ID) (Transform, bool) {
	tr, ok := t.transforms[id]
	return tr, ok
}

// Transform returns the first-pass replacement for in. Simple rules that
// map a material onto itself yield nothing.
func (t *Table) Transform(in block.State, r rng.Source) (block.State, bool) {
	tr, ok := t.transforms[in.ID]
	if !ok {
		return block.State{}, false
	}
	if tr.Kind != Simple {
		return tr.Apply(in), true
	}
	if tr.To == in.ID {
		return block.State{}, false
	}
	to := tr.To
	if rng.Chance(r, AlternativeChance) {
		to = t.alternative(to, r)
	}
	return block.Of(to), true
}

func (t *Table) alternative(id block.ID, r rng.Source) block.ID {
	alt, ok := t.alternatives[id]
	if !ok {
		return id
	}
	return alt.Choices[r.Intn(len(alt.Choices))]
}

func (t *Table) CanTransform(s block.State) bool {
	_, ok := t.transforms[s.ID]
	return ok
}

// IsImmune reports whether s must never be overwritten.
func (t *Table) IsImmune(s block.State) bool {
	return t.protected[s.ID] || t.corrupted[s.ID] || s.IsAir()
}

// IsAlreadyCorrupted reports whether s is base corruption: a discovery seed
// and a maturation candidate.
func (t *Table) IsAlreadyCorrupted(s block.State) bool { return t.established[s.ID] }

// IsMarker reports whether s belongs to a source's defining structure.
func (t *Table) IsMarker(s block.State) bool { return t.markers[s.ID] }

// Eligible reports whether s is a valid spread target.
func (t *Table) Eligible(s block.State) bool {
	return !t.IsImmune(s) && t.CanTransform(s)
}

// Materials lists every material the table mentions, sorted.
func (t *Table) Materials() []block.ID {
	seen := map[block.ID]bool{}
	for from, tr := range t.transforms {
		seen[from] = true
		seen[tr.To] = true
	}
	for _, m := range []map[block.ID]bool{t.protected, t.corrupted, t.established, t.markers} {
		for id := range m {
			seen[id] = true
		}
	}
	for _, a := range t.alternatives {
		for _, id := range a.Choices {
			seen[id] = true
		}
	}
	out := make([]block.ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ids(in []string) []block.ID {
	out := make([]block.ID, len(in))
	for i, s := range in {
		out[i] = block.ID(s)
	}
	return out
}

func idSet(in []string) map[block.ID]bool {
	m := make(map[block.ID]bool, len(in))
	for _, s := range in {
		m[block.ID(s)] = true
	}
	return m
}
