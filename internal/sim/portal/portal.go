// Package portal finds portal frames in the block store, lights empty ones
// and measures how much crying obsidian they carry.
package portal

import (
	"errors"
	"sort"

	"festering.ai/internal/sim/block"
	"festering.ai/internal/sim/voxel"
)

const (
	MaxWidth     = 21
	MaxHeight    = 21
	MinWidth     = 2
	MinHeight    = 3
	SearchRadius = 3
)

var (
	ErrNoFrame    = errors.New("no portal frame")
	ErrPlainFrame = errors.New("portal frame has no crying obsidian")
)

type Reader interface {
	Block(p voxel.Pos) block.State
}

type ReadWriter interface {
	Reader
	SetBlock(p voxel.Pos, s block.State)
}

// Frame is a measured portal. LowerCorner is the lowest interior voxel on
// the negative side of the width axis.
type Frame struct {
	Axis        block.Axis
	LowerCorner voxel.Pos
	Width       int
	Height      int
	Blocks      []voxel.Pos
	Crying      int
}

// Center is the interior voxel a source created from this frame grows from.
func (f Frame) Center() voxel.Pos {
	return along(f.LowerCorner, widthDir(f.Axis), f.Width/2).Add(0, f.Height/2, 0)
}

func widthDir(a block.Axis) voxel.Dir {
	if a == block.AxisZ {
		return voxel.South
	}
	return voxel.East
}

// IsFrameBlock reports whether id can form a portal frame.
func IsFrameBlock(id block.ID) bool {
	return id == block.Obsidian || id == block.CryingObsidian
}

func isPortal(r Reader, p voxel.Pos) bool { return r.Block(p).ID == block.NetherPortal }

// Scan locates the portal at or within SearchRadius of near and measures
// its frame.
func Scan(r Reader, near voxel.Pos) (Frame, error) {
	interior, ok := findInterior(r, near)
	if !ok {
		return Frame{}, ErrNoFrame
	}
	for _, axis := range []block.Axis{block.AxisX, block.AxisZ} {
		f, ok := measure(r, interior, axis, isPortal)
		if ok {
			return f, nil
		}
	}
	return Frame{}, ErrNoFrame
}

func findInterior(r Reader, near voxel.Pos) (voxel.Pos, bool) {
	if isPortal(r, near) {
		return near, true
	}
	for dx := -SearchRadius; dx <= SearchRadius; dx++ {
		for dy := -SearchRadius; dy <= SearchRadius; dy++ {
			for dz := -SearchRadius; dz <= SearchRadius; dz++ {
				p := near.Add(dx, dy, dz)
				if isPortal(r, p) {
					return p, true
				}
			}
		}
	}
	return voxel.Pos{}, false
}

// measure walks from an interior voxel to the lower corner, sizes the
// opening and checks that every frame position holds a frame block.
func measure(r Reader, start voxel.Pos, axis block.Axis, inside func(Reader, voxel.Pos) bool) (Frame, bool) {
	wd := widthDir(axis)
	back := wd.Opposite()
	corner := start
	for i := 0; i < MaxHeight && inside(r, corner.Down()); i++ {
		corner = corner.Down()
	}
	for i := 0; i < MaxWidth && inside(r, corner.Offset(back)); i++ {
		corner = corner.Offset(back)
	}
	width := 0
	for p := corner; width < MaxWidth && inside(r, p); p = p.Offset(wd) {
		width++
	}
	height := 0
	for p := corner; height < MaxHeight && inside(r, p); p = p.Up() {
		height++
	}
	if width == 0 || height == 0 {
		return Frame{}, false
	}
	f := Frame{Axis: axis, LowerCorner: corner, Width: width, Height: height}
	f.Blocks = frameBlocks(corner, wd, width, height)
	for _, p := range f.Blocks {
		id := r.Block(p).ID
		if !IsFrameBlock(id) {
			return Frame{}, false
		}
		if id == block.CryingObsidian {
			f.Crying++
		}
	}
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			if !inside(r, along(corner, wd, i).Add(0, j, 0)) {
				return Frame{}, false
			}
		}
	}
	return f, true
}

// frameBlocks lists the ring around the opening, corners included, in a
// stable order.
func frameBlocks(corner voxel.Pos, wd voxel.Dir, width, height int) []voxel.Pos {
	var out []voxel.Pos
	for i := -1; i <= width; i++ {
		out = append(out, along(corner, wd, i).Down())
		out = append(out, along(corner, wd, i).Add(0, height, 0))
	}
	for j := 0; j < height; j++ {
		out = append(out, along(corner, wd, -1).Add(0, j, 0))
		out = append(out, along(corner, wd, width).Add(0, j, 0))
	}
	sort.Slice(out, func(i, j int) bool { return voxel.Less(out[i], out[j]) })
	return out
}

func along(p voxel.Pos, d voxel.Dir, n int) voxel.Pos {
	v := d.Vec()
	return p.Add(v[0]*n, v[1]*n, v[2]*n)
}

func open(r Reader, p voxel.Pos) bool {
	st := r.Block(p)
	return st.IsAir() || st.ID == "FIRE"
}

// Light fills the empty frame around near with portal blocks. The opening
// must be between MinWidth x MinHeight and MaxWidth x MaxHeight.
func Light(w ReadWriter, near voxel.Pos) (Frame, error) {
	if !open(w, near) {
		return Frame{}, ErrNoFrame
	}
	for _, axis := range []block.Axis{block.AxisX, block.AxisZ} {
		f, ok := measure(w, near, axis, open)
		if !ok || f.Width < MinWidth || f.Height < MinHeight {
			continue
		}
		wd := widthDir(axis)
		st := block.State{ID: block.NetherPortal, Props: block.Props{Axis: axis}}
		for i := 0; i < f.Width; i++ {
			for j := 0; j < f.Height; j++ {
				w.SetBlock(along(f.LowerCorner, wd, i).Add(0, j, 0), st)
			}
		}
		return f, nil
	}
	return Frame{}, ErrNoFrame
}

// HasPortalNear reports whether a portal block lies in the cube of the
// given half-size around p.
func HasPortalNear(r Reader, p voxel.Pos, half int) bool {
	for dx := -half; dx <= half; dx++ {
		for dy := -half; dy <= half; dy++ {
			for dz := -half; dz <= half; dz++ {
				if isPortal(r, p.Add(dx, dy, dz)) {
					return true
				}
			}
		}
	}
	return false
}

// Build places an unlit frame whose opening starts at lower. The first
// crying positions in frame order get crying obsidian.
func Build(w ReadWriter, lower voxel.Pos, axis block.Axis, width, height, crying int) []voxel.Pos {
	wd := widthDir(axis)
	ring := frameBlocks(lower, wd, width, height)
	for i, p := range ring {
		id := block.Obsidian
		if i < crying {
			id = block.CryingObsidian
		}
		w.SetBlock(p, block.Of(id))
	}
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			w.SetBlock(along(lower, wd, i).Add(0, j, 0), block.Of(block.Air))
		}
	}
	return ring
}
