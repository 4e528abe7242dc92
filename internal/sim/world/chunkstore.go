package world

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/terrain"
	"festering.ai/internal/sim/voxel"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

func ChunkKeyOf(p voxel.Pos) ChunkKey {
	return ChunkKey{CX: voxel.FloorDiv(p.X, ChunkSize), CZ: voxel.FloorDiv(p.Z, ChunkSize)}
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height, palette ids

	dirty bool
	hash  [32]byte
}

func newChunk(cx, cz, height int) *Chunk {
	return &Chunk{CX: cx, CZ: cz, Height: height, Blocks: make([]uint16, ChunkSize*ChunkSize*height)}
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Palette interns block states into the uint16 values chunks store.
// Index 0 is always air.
type Palette struct {
	states []block.State
	index  map[block.State]uint16
}

func NewPalette() *Palette {
	p := &Palette{index: map[block.State]uint16{}}
	p.ID(block.Of(block.Air))
	return p
}

// PaletteFromStrings rebuilds a palette in the given order.
func PaletteFromStrings(names []string) (*Palette, error) {
	p := &Palette{index: map[block.State]uint16{}}
	for i, n := range names {
		s, err := block.Parse(n)
		if err != nil {
			return nil, fmt.Errorf("palette[%d]: %w", i, err)
		}
		if _, dup := p.index[s]; dup {
			return nil, fmt.Errorf("palette[%d]: duplicate state %s", i, n)
		}
		p.index[s] = uint16(len(p.states))
		p.states = append(p.states, s)
	}
	if len(p.states) == 0 || !p.states[0].IsAir() {
		return nil, fmt.Errorf("palette must start with AIR")
	}
	return p, nil
}

func (p *Palette) ID(s block.State) uint16 {
	if s.ID == "" {
		s = block.Of(block.Air)
	}
	if id, ok := p.index[s]; ok {
		return id
	}
	id := uint16(len(p.states))
	p.index[s] = id
	p.states = append(p.states, s)
	return id
}

func (p *Palette) State(id uint16) block.State {
	if int(id) >= len(p.states) {
		return block.Of(block.Air)
	}
	return p.states[id]
}

func (p *Palette) Len() int { return len(p.states) }

func (p *Palette) Strings() []string {
	out := make([]string, len(p.states))
	for i, s := range p.states {
		out[i] = s.String()
	}
	return out
}

// ChunkStore holds every generated chunk. Only loaded chunks are visible
// to the engine: reads elsewhere return air and writes are dropped.
type ChunkStore struct {
	gen    *terrain.Generator
	height int
	pal    *Palette

	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
	loaded map[ChunkKey]bool
}

func NewChunkStore(gen *terrain.Generator, height int) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		height: height,
		pal:    NewPalette(),
		chunks: map[ChunkKey]*Chunk{},
		loaded: map[ChunkKey]bool{},
	}
}

func (s *ChunkStore) Palette() *Palette { return s.pal }

func (s *ChunkStore) Loaded(p voxel.Pos) bool {
	return s.loaded[ChunkKeyOf(p)]
}

func (s *ChunkStore) Block(p voxel.Pos) block.State {
	if p.Y < 0 || p.Y >= s.height {
		return block.Of(block.Air)
	}
	k := ChunkKeyOf(p)
	if !s.loaded[k] {
		return block.Of(block.Air)
	}
	ch := s.chunks[k]
	return s.pal.State(ch.Get(voxel.Mod(p.X, ChunkSize), p.Y, voxel.Mod(p.Z, ChunkSize)))
}

func (s *ChunkStore) SetBlock(p voxel.Pos, st block.State) {
	if p.Y < 0 || p.Y >= s.height {
		return
	}
	k := ChunkKeyOf(p)
	if !s.loaded[k] {
		return
	}
	ch := s.chunks[k]
	ch.Set(voxel.Mod(p.X, ChunkSize), p.Y, voxel.Mod(p.Z, ChunkSize), s.pal.ID(st))
}

// LoadChunk marks a chunk loaded, generating it on first use. It reports
// whether the chunk was not loaded before.
func (s *ChunkStore) LoadChunk(k ChunkKey) bool {
	if s.loaded[k] {
		return false
	}
	if _, ok := s.chunks[k]; !ok {
		ch := newChunk(k.CX, k.CZ, s.height)
		s.generateChunk(ch)
		ch.dirty = true
		_ = ch.Digest()
		s.chunks[k] = ch
	}
	s.loaded[k] = true
	return true
}

// LoadArea loads the square of chunks within radius of (cx,cz) and
// returns how many were newly loaded.
func (s *ChunkStore) LoadArea(cx, cz, radius int) int {
	n := 0
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			if s.LoadChunk(ChunkKey{CX: cx + dx, CZ: cz + dz}) {
				n++
			}
		}
	}
	return n
}

// Unload hides a chunk from the engine. Its blocks are kept.
func (s *ChunkStore) Unload(k ChunkKey) bool {
	if !s.loaded[k] {
		return false
	}
	delete(s.loaded, k)
	return true
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.loaded))
	for k := range s.loaded {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (s *ChunkStore) ChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (s *ChunkStore) generateChunk(ch *Chunk) {
	air := s.pal.ID(block.Of(block.Air))
	for i := range ch.Blocks {
		ch.Blocks[i] = air
	}
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			wx := ch.CX*ChunkSize + x
			wz := ch.CZ*ChunkSize + z
			s.gen.Column(wx, wz, func(y int, st block.State) {
				if y < 0 || y >= ch.Height {
					return
				}
				ch.Blocks[ch.index(x, y, z)] = s.pal.ID(st)
			})
		}
	}
}
