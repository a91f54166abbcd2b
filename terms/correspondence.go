package terms

import (
	"github.com/daniel-perry/shapeworks"
	"gonum.org/v1/gonum/spatial/r3"
)

// Correspondence pulls particle idx of domain d toward the mean position of
// particle idx in every other domain:
//
//	E = k/2 * |x - m|^2,  grad = k * (x - m)
//
// Domains with fewer than idx+1 particles are skipped.  With no other domain
// the energy and gradient are zero.
type Correspondence struct {
	shapeworks.Base
	Stiffness float64
	MaxMove   float64
}

func (c *Correspondence) Evaluate(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64) {
	grad, maxmove, _ := c.EvaluateEnergy(idx, d, sys)
	return grad, maxmove
}

func (c *Correspondence) EvaluateEnergy(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64, float64) {
	diff, ok := c.offset(idx, d, sys)
	if !ok {
		return r3.Vec{}, c.MaxMove, 0
	}
	return r3.Scale(c.Stiffness, diff), c.MaxMove, 0.5 * c.Stiffness * r3.Dot(diff, diff)
}

func (c *Correspondence) Energy(idx, d int, sys shapeworks.ParticleSystem) float64 {
	diff, ok := c.offset(idx, d, sys)
	if !ok {
		return 0
	}
	return 0.5 * c.Stiffness * r3.Dot(diff, diff)
}

// offset returns x - m.
func (c *Correspondence) offset(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, bool) {
	var sum r3.Vec
	n := 0
	for other := 0; other < sys.NumDomains(); other++ {
		if other == d || idx >= sys.NumParticles(other) {
			continue
		}
		sum = r3.Add(sum, sys.Position(idx, other))
		n++
	}
	if n == 0 {
		return r3.Vec{}, false
	}
	mean := r3.Scale(1/float64(n), sum)
	return r3.Sub(sys.Position(idx, d), mean), true
}
