package terms

import (
	"math"

	"github.com/daniel-perry/shapeworks"
	"gonum.org/v1/gonum/spatial/r3"
)

// Repulsion spreads the particles of a domain apart with Gaussian kernels of
// width Sigma:
//
//	E_i = sum_j exp(-r_ij^2 / 2s^2)
//
// Neighbours farther than 3*Sigma are ignored.  The step bound is Sigma.
type Repulsion struct {
	shapeworks.Base
	Sigma float64
}

func (r *Repulsion) Evaluate(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64) {
	grad, maxmove, _ := r.EvaluateEnergy(idx, d, sys)
	return grad, maxmove
}

func (r *Repulsion) EvaluateEnergy(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64, float64) {
	s2 := r.Sigma * r.Sigma
	var grad r3.Vec
	energy := 0.0
	r.neighbors(idx, d, sys, func(diff r3.Vec, w float64) {
		energy += w
		grad = r3.Add(grad, r3.Scale(-w/s2, diff))
	})
	return grad, r.Sigma, energy
}

func (r *Repulsion) Energy(idx, d int, sys shapeworks.ParticleSystem) float64 {
	energy := 0.0
	r.neighbors(idx, d, sys, func(_ r3.Vec, w float64) { energy += w })
	return energy
}

// neighbors calls fn with x_idx - x_j and the kernel weight for every
// particle j within the cutoff.
func (r *Repulsion) neighbors(idx, d int, sys shapeworks.ParticleSystem, fn func(diff r3.Vec, w float64)) {
	s2 := r.Sigma * r.Sigma
	cutoff := 9 * s2
	x := sys.Position(idx, d)
	for j := 0; j < sys.NumParticles(d); j++ {
		if j == idx {
			continue
		}
		diff := r3.Sub(x, sys.Position(j, d))
		dist2 := r3.Dot(diff, diff)
		if dist2 > cutoff {
			continue
		}
		fn(diff, math.Exp(-dist2/(2*s2)))
	}
}
