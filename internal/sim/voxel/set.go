package voxel

import "sort"

// Set is an insertion-ordered set of positions. Removal swaps the last
// member into the freed slot, so membership order depends only on the
// sequence of operations applied, which keeps seeded runs reproducible.
//
// The zero value is ready to use.
type Set struct {
	idx   map[Pos]int
	items []Pos
}

func NewSet(ps ...Pos) *Set {
	s := &Set{}
	for _, p := range ps {
		s.Add(p)
	}
	return s
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *Set) Has(p Pos) bool {
	if s == nil || s.idx == nil {
		return false
	}
	_, ok := s.idx[p]
	return ok
}

// Add inserts p and reports whether it was new.
func (s *Set) Add(p Pos) bool {
	if s.idx == nil {
		s.idx = map[Pos]int{}
	}
	if _, ok := s.idx[p]; ok {
		return false
	}
	s.idx[p] = len(s.items)
	s.items = append(s.items, p)
	return true
}

// Remove deletes p and reports whether it was present.
func (s *Set) Remove(p Pos) bool {
	if s == nil || s.idx == nil {
		return false
	}
	i, ok := s.idx[p]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.idx[moved] = i
	}
	s.items = s.items[:last]
	delete(s.idx, p)
	return true
}

// At returns the i-th member in the current internal order.
func (s *Set) At(i int) Pos { return s.items[i] }

func (s *Set) Clear() {
	if s == nil {
		return
	}
	s.idx = nil
	s.items = nil
}

// Slice returns a copy of the members in internal order.
func (s *Set) Slice() []Pos {
	if s == nil || len(s.items) == 0 {
		return nil
	}
	out := make([]Pos, len(s.items))
	copy(out, s.items)
	return out
}

// Sorted returns a copy of the members ordered by Less.
func (s *Set) Sorted() []Pos {
	out := s.Slice()
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

func (s *Set) Clone() *Set {
	c := &Set{}
	if s == nil {
		return c
	}
	c.idx = make(map[Pos]int, len(s.items))
	c.items = make([]Pos, len(s.items))
	copy(c.items, s.items)
	for i, p := range c.items {
		c.idx[p] = i
	}
	return c
}

// Equal reports whether both sets hold the same members, ignoring order.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, p := range s.Slice() {
		if !o.Has(p) {
			return false
		}
	}
	return true
}
