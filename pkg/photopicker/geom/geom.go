// Package geom holds the small value types shared by the pipelines and the
// transition machine. Units are points unless a name says pixels.
package geom

import "math"

// Size is a width and height.
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether either dimension is unset.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// MaxDimension returns the longer side.
func (s Size) MaxDimension() float64 {
	return math.Max(s.Width, s.Height)
}

// Scaled multiplies both dimensions by f.
func (s Size) Scaled(f float64) Size {
	return Size{Width: s.Width * f, Height: s.Height * f}
}

// Point is a location or a vector.
type Point struct {
	X float64
	Y float64
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// RectFromCenter builds a rectangle of the given size around c.
func RectFromCenter(c Point, s Size) Rect {
	return Rect{X: c.X - s.Width/2, Y: c.Y - s.Height/2, Width: s.Width, Height: s.Height}
}

func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// WithCenter moves r so its center is c, keeping its size.
func (r Rect) WithCenter(c Point) Rect {
	return RectFromCenter(c, r.Size())
}

// ScaledAboutCenter scales r by f around its own center.
func (r Rect) ScaledAboutCenter(f float64) Rect {
	return RectFromCenter(r.Center(), r.Size().Scaled(f))
}

// Lerp interpolates between a and b; t is clamped to [0, 1].
func Lerp(a, b Rect, t float64) Rect {
	t = Clamp(t, 0, 1)
	return Rect{
		X:      a.X + (b.X-a.X)*t,
		Y:      a.Y + (b.Y-a.Y)*t,
		Width:  a.Width + (b.Width-a.Width)*t,
		Height: a.Height + (b.Height-a.Height)*t,
	}
}

// LerpPoint interpolates between a and b; t is clamped to [0, 1].
func LerpPoint(a, b Point, t float64) Point {
	return Point{X: LerpValue(a.X, b.X, t), Y: LerpValue(a.Y, b.Y, t)}
}

// LerpValue interpolates between a and b; t is clamped to [0, 1].
func LerpValue(a, b, t float64) float64 {
	return a + (b-a)*Clamp(t, 0, 1)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
