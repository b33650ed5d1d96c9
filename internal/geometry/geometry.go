// Package geometry holds the value types the match simulation is built on.
// Everything here is pure: no state, no errors, no panics on degenerate input.
package geometry

import "math"

type Vector2d struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector2d) Add(o Vector2d) Vector2d {
	return Vector2d{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector2d) Sub(o Vector2d) Vector2d {
	return Vector2d{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector2d) Scale(f float64) Vector2d {
	return Vector2d{X: v.X * f, Y: v.Y * f}
}

func (v Vector2d) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Rectangle is axis aligned. TopLeft must not be right of or below BottomRight.
type Rectangle struct {
	TopLeft     Vector2d `json:"topLeft"`
	BottomRight Vector2d `json:"bottomRight"`
}

// NewRectangle builds a rectangle from its top left corner and size.
// Negative sizes are treated as zero.
func NewRectangle(topLeft Vector2d, width, height float64) Rectangle {
	return Rectangle{
		TopLeft:     topLeft,
		BottomRight: Vector2d{X: topLeft.X + math.Max(width, 0), Y: topLeft.Y + math.Max(height, 0)},
	}
}

func (r Rectangle) Valid() bool {
	return r.TopLeft.X <= r.BottomRight.X && r.TopLeft.Y <= r.BottomRight.Y
}

func (r Rectangle) Width() float64 {
	return r.BottomRight.X - r.TopLeft.X
}

func (r Rectangle) Height() float64 {
	return r.BottomRight.Y - r.TopLeft.Y
}

// Degenerate reports a zero width or zero height rectangle.
func (r Rectangle) Degenerate() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

func (r Rectangle) Center() Vector2d {
	return Vector2d{X: (r.TopLeft.X + r.BottomRight.X) / 2, Y: (r.TopLeft.Y + r.BottomRight.Y) / 2}
}

func (r Rectangle) Translate(d Vector2d) Rectangle {
	return Rectangle{TopLeft: r.TopLeft.Add(d), BottomRight: r.BottomRight.Add(d)}
}

// FullRectangle carries all four corners. It is only produced by
// MakeFullRectangle so the derived corners always agree with the base ones.
type FullRectangle struct {
	base       Rectangle
	topRight   Vector2d
	bottomLeft Vector2d
}

func MakeFullRectangle(r Rectangle) FullRectangle {
	return FullRectangle{
		base:       r,
		topRight:   Vector2d{X: r.BottomRight.X, Y: r.TopLeft.Y},
		bottomLeft: Vector2d{X: r.TopLeft.X, Y: r.BottomRight.Y},
	}
}

func (f FullRectangle) Rect() Rectangle       { return f.base }
func (f FullRectangle) TopLeft() Vector2d     { return f.base.TopLeft }
func (f FullRectangle) TopRight() Vector2d    { return f.topRight }
func (f FullRectangle) BottomLeft() Vector2d  { return f.bottomLeft }
func (f FullRectangle) BottomRight() Vector2d { return f.base.BottomRight }

type Axis int

const (
	AxisX Axis = iota
	AxisY
)

type Edge int

const (
	EdgeTop Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	}
	return "unknown"
}

// Range is a closed interval with Lo <= Hi.
type Range struct {
	Lo float64
	Hi float64
}

// NewRange sorts its bounds.
func NewRange(a, b float64) Range {
	if a > b {
		a, b = b, a
	}
	return Range{Lo: a, Hi: b}
}

// EdgeOf projects one side of the rectangle onto an axis.
func EdgeOf(f FullRectangle, axis Axis, edge Edge) Range {
	var a, b Vector2d
	switch edge {
	case EdgeTop:
		a, b = f.TopLeft(), f.TopRight()
	case EdgeBottom:
		a, b = f.BottomLeft(), f.BottomRight()
	case EdgeLeft:
		a, b = f.TopLeft(), f.BottomLeft()
	default:
		a, b = f.TopRight(), f.BottomRight()
	}
	if axis == AxisX {
		return NewRange(a.X, b.X)
	}
	return NewRange(a.Y, b.Y)
}

// RangesOverlap treats touching endpoints as overlapping. Contact detection
// relies on that: a ball grazing the corner of a paddle is a hit.
func RangesOverlap(r1, r2 Range) bool {
	return !(r1.Hi < r2.Lo || r2.Hi < r1.Lo)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
