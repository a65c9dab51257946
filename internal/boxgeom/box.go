// Package boxgeom provides the stateless box geometry the training-loss
// pipeline is built on: corner/center conversions, the distance codec
// used by distribution regression, and the IoU family of overlap
// measures.
package boxgeom

import "github.com/chewxy/math32"

// Box is an axis-aligned box in corner form.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// Point is a 2D position in the same frame as the boxes it is compared
// against (pixel or stride units depending on the call site).
type Point struct {
	X, Y float32
}

// Dist holds the four signed distances from a point to a box's sides.
type Dist struct {
	Left, Top, Right, Bottom float32
}

// Area returns the box area, negative sides included as-is.
func (b Box) Area() float32 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Center returns the box center point.
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) * 0.5, Y: (b.Y1 + b.Y2) * 0.5}
}

// Contains reports whether p lies strictly inside b, with a small margin
// so points exactly on an edge do not count.
func (b Box) Contains(p Point) bool {
	const eps = 1e-9
	return p.X-b.X1 > eps && p.Y-b.Y1 > eps && b.X2-p.X > eps && b.Y2-p.Y > eps
}

// XYWHToXYXY converts a center-form box to corner form.
func XYWHToXYXY(b Box) Box {
	// In center form the fields are reused as (cx, cy, w, h).
	cx, cy, w, h := b.X1, b.Y1, b.X2, b.Y2
	return Box{X1: cx - w*0.5, Y1: cy - h*0.5, X2: cx + w*0.5, Y2: cy + h*0.5}
}

// XYXYToXYWH converts a corner-form box to center form, stored as
// (cx, cy, w, h) in the Box fields.
func XYXYToXYWH(b Box) Box {
	return Box{
		X1: (b.X1 + b.X2) * 0.5,
		Y1: (b.Y1 + b.Y2) * 0.5,
		X2: b.X2 - b.X1,
		Y2: b.Y2 - b.Y1,
	}
}

// DistToBox projects the four side distances through an anchor point,
// producing a corner box.
func DistToBox(p Point, d Dist) Box {
	return Box{X1: p.X - d.Left, Y1: p.Y - d.Top, X2: p.X + d.Right, Y2: p.Y + d.Bottom}
}

// BoxToDist is the inverse of DistToBox. Distances are clamped to
// [0, regMax-0.01] so they stay representable by a discrete distribution
// with regMax+1 bins.
func BoxToDist(p Point, b Box, regMax int) Dist {
	hi := float32(regMax) - 0.01
	return Dist{
		Left:   clamp(p.X-b.X1, 0, hi),
		Top:    clamp(p.Y-b.Y1, 0, hi),
		Right:  clamp(b.X2-p.X, 0, hi),
		Bottom: clamp(b.Y2-p.Y, 0, hi),
	}
}

// CenterDistance returns the euclidean distance between the two box
// centers.
func CenterDistance(a, b Box) float32 {
	ca, cb := a.Center(), b.Center()
	dx := ca.X - cb.X
	dy := ca.Y - cb.Y
	return math32.Sqrt(dx*dx + dy*dy)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
