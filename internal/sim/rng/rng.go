// Package rng is the random source handed to every engine call. A single
// instance is created per tick by the caller; *math/rand.Rand satisfies it.
package rng

import "math/rand"

type Source interface {
	Float64() float64
	Intn(n int) int
	Int63() int64
}

// New returns a seeded source.
func New(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

// ForTick derives the per-tick source from a world seed so a resumed world
// replays the same draws for the same tick.
func ForTick(seed int64, tick uint64) *rand.Rand {
	z := uint64(seed) ^ (tick * 0x9e3779b97f4a7c15)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return New(int64(z))
}

func Bool(r Source) bool { return r.Int63()&1 == 1 }

// Chance reports true with probability p.
func Chance(r Source, p float64) bool { return r.Float64() < p }

// Shuffle permutes n elements in place (Fisher-Yates).
func Shuffle(r Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}
