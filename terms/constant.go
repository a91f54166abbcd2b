// Package terms provides simple vector functions: a constant stub, a closure
// adapter, a cross-domain correspondence spring, a Gaussian repulsion and a
// centroid correction.
package terms

import (
	"sync/atomic"

	"github.com/daniel-perry/shapeworks"
	"gonum.org/v1/gonum/spatial/r3"
)

// Calls counts how often each method of a Constant was invoked.
type Calls struct {
	Evaluate        int
	Energy          int
	BeforeEvaluate  int
	BeforeIteration int
	AfterIteration  int
}

// Constant returns the same gradient, step bound and energy for every
// particle and counts its calls.  Use it by pointer.
type Constant struct {
	shapeworks.Base
	Grad    r3.Vec
	MaxMove float64
	Value   float64

	evals, energies, beforeEval, beforeIter, afterIter atomic.Int64
}

func (c *Constant) Evaluate(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64) {
	c.evals.Add(1)
	return c.Grad, c.MaxMove
}

func (c *Constant) EvaluateEnergy(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64, float64) {
	c.evals.Add(1)
	return c.Grad, c.MaxMove, c.Value
}

func (c *Constant) Energy(idx, d int, sys shapeworks.ParticleSystem) float64 {
	c.energies.Add(1)
	return c.Value
}

func (c *Constant) BeforeEvaluate(idx, d int, sys shapeworks.ParticleSystem) { c.beforeEval.Add(1) }

func (c *Constant) BeforeIteration() { c.beforeIter.Add(1) }

func (c *Constant) AfterIteration() { c.afterIter.Add(1) }

func (c *Constant) Calls() Calls {
	return Calls{
		Evaluate:        int(c.evals.Load()),
		Energy:          int(c.energies.Load()),
		BeforeEvaluate:  int(c.beforeEval.Load()),
		BeforeIteration: int(c.beforeIter.Load()),
		AfterIteration:  int(c.afterIter.Load()),
	}
}
