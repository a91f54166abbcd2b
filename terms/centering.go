package terms

import (
	"github.com/daniel-perry/shapeworks"
	"gonum.org/v1/gonum/spatial/r3"
)

// Centering keeps the centroid c of each domain at the origin.  The domain
// energy k/2*|c|^2 is shared evenly among its n particles and every particle
// is pushed by the full domain gradient k*c/n.
type Centering struct {
	shapeworks.Base
	Stiffness float64
	MaxMove   float64
}

func (c *Centering) Evaluate(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64) {
	grad, maxmove, _ := c.EvaluateEnergy(idx, d, sys)
	return grad, maxmove
}

func (c *Centering) EvaluateEnergy(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64, float64) {
	centroid, n := c.centroid(d, sys)
	if n == 0 {
		return r3.Vec{}, c.MaxMove, 0
	}
	grad := r3.Scale(c.Stiffness/float64(n), centroid)
	return grad, c.MaxMove, c.share(centroid, n)
}

func (c *Centering) Energy(idx, d int, sys shapeworks.ParticleSystem) float64 {
	centroid, n := c.centroid(d, sys)
	if n == 0 {
		return 0
	}
	return c.share(centroid, n)
}

func (c *Centering) share(centroid r3.Vec, n int) float64 {
	return 0.5 * c.Stiffness * r3.Dot(centroid, centroid) / float64(n)
}

func (c *Centering) centroid(d int, sys shapeworks.ParticleSystem) (r3.Vec, int) {
	n := sys.NumParticles(d)
	if n == 0 {
		return r3.Vec{}, 0
	}
	var sum r3.Vec
	for i := 0; i < n; i++ {
		sum = r3.Add(sum, sys.Position(i, d))
	}
	return r3.Scale(1/float64(n), sum), n
}
