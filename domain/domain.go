// Package domain implements the constraints that keep particles on their
// shape: each domain projects a moved particle back onto its allowed set.
package domain

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Domain constrains particles to a surface or region.  Nearest projects an
// arbitrary point onto the closest allowed point.
type Domain interface {
	Nearest(p r3.Vec) r3.Vec
}

// Free is the unconstrained domain.
type Free struct{}

func (Free) Nearest(p r3.Vec) r3.Vec { return p }

// Box confines particles to the axis aligned box [Lower, Upper] by sliding
// each coordinate to the nearest value inside bounds.
type Box struct {
	Lower r3.Vec
	Upper r3.Vec
}

func NewBox(lower, upper r3.Vec) *Box {
	if lower.X > upper.X || lower.Y > upper.Y || lower.Z > upper.Z {
		panic("box lower bound exceeds upper bound")
	}
	return &Box{Lower: lower, Upper: upper}
}

func (b *Box) Nearest(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: math.Min(b.Upper.X, math.Max(b.Lower.X, p.X)),
		Y: math.Min(b.Upper.Y, math.Max(b.Lower.Y, p.Y)),
		Z: math.Min(b.Upper.Z, math.Max(b.Lower.Z, p.Z)),
	}
}

// Sphere is the surface of a sphere.  Points are projected radially; the
// center itself maps to the +Z pole.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s *Sphere) Nearest(p r3.Vec) r3.Vec {
	dir := r3.Sub(p, s.Center)
	n := r3.Norm(dir)
	if n == 0 {
		return r3.Add(s.Center, r3.Vec{Z: s.Radius})
	}
	return r3.Add(s.Center, r3.Scale(s.Radius/n, dir))
}
