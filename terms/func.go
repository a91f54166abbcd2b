package terms

import (
	"github.com/daniel-perry/shapeworks"
	"gonum.org/v1/gonum/spatial/r3"
)

type GradFunc func(idx, d int, sys shapeworks.ParticleSystem) r3.Vec

type EnergyFunc func(idx, d int, sys shapeworks.ParticleSystem) float64

// Func adapts a pair of closures to a vector function with a fixed step
// bound.  A nil EnergyFn means zero energy.
type Func struct {
	shapeworks.Base
	GradFn   GradFunc
	EnergyFn EnergyFunc
	MaxMove  float64
}

func (f *Func) Evaluate(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64) {
	return f.GradFn(idx, d, sys), f.MaxMove
}

func (f *Func) EvaluateEnergy(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64, float64) {
	return f.GradFn(idx, d, sys), f.MaxMove, f.Energy(idx, d, sys)
}

func (f *Func) Energy(idx, d int, sys shapeworks.ParticleSystem) float64 {
	if f.EnergyFn == nil {
		return 0
	}
	return f.EnergyFn(idx, d, sys)
}
