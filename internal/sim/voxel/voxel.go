// Package voxel holds integer grid coordinates and the face directions
// used to walk between them.
package voxel

import "fmt"

type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

func FromArray(a [3]int) Pos { return Pos{X: a[0], Y: a[1], Z: a[2]} }

func (p Pos) Add(dx, dy, dz int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz} }

func (p Pos) Offset(d Dir) Pos {
	v := dirVectors[d]
	return Pos{X: p.X + v[0], Y: p.Y + v[1], Z: p.Z + v[2]}
}

func (p Pos) Up() Pos   { return p.Offset(Up) }
func (p Pos) Down() Pos { return p.Offset(Down) }

func (p Pos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// DistSq is the squared Euclidean distance between a and b.
func DistSq(a, b Pos) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

// WithinRadius reports whether p lies inside the closed ball of radius r around center.
func WithinRadius(center, p Pos, r int) bool {
	if r < 0 {
		return false
	}
	return DistSq(center, p) <= r*r
}

// Less orders positions by X, then Y, then Z.
func Less(a, b Pos) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

type Dir uint8

const (
	Down Dir = iota
	Up
	North
	South
	West
	East
)

var dirVectors = [...][3]int{
	Down:  {0, -1, 0},
	Up:    {0, 1, 0},
	North: {0, 0, -1},
	South: {0, 0, 1},
	West:  {-1, 0, 0},
	East:  {1, 0, 0},
}

// Faces lists the six face directions in a fixed order.
var Faces = [6]Dir{Down, Up, North, South, West, East}

// Horizontals lists the four directions that keep Y constant.
var Horizontals = [4]Dir{North, South, East, West}

func (d Dir) Vec() [3]int { return dirVectors[d] }

func (d Dir) Opposite() Dir {
	switch d {
	case Down:
		return Up
	case Up:
		return Down
	case North:
		return South
	case South:
		return North
	case West:
		return East
	}
	return West
}

func (d Dir) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	default:
		return "unknown"
	}
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
