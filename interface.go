// Package shapeworks defines the capability interfaces shared by the particle
// correspondence optimizer: vector functions that produce per-particle
// gradients and energies, and the particle system handle they read from.
package shapeworks

import "gonum.org/v1/gonum/spatial/r3"

// ParticleSystem is a read-only handle onto the current particle positions of
// every domain.  Vector functions never mutate it; only the solver moves
// particles.
type ParticleSystem interface {
	NumDomains() int
	NumParticles(d int) int
	Position(idx, d int) r3.Vec
}

// VectorFunction is a force term evaluated for one particle at a time.
// Indices are not validated - out of range indices are the caller's problem.
type VectorFunction interface {
	// Evaluate returns the energy gradient for particle idx in domain d and an
	// upper bound on how far the particle may move this iteration.
	Evaluate(idx, d int, sys ParticleSystem) (grad r3.Vec, maxmove float64)

	// EvaluateEnergy is Evaluate that also reports the particle's energy.
	EvaluateEnergy(idx, d int, sys ParticleSystem) (grad r3.Vec, maxmove, energy float64)

	// Energy returns the particle's energy without any other side effects.
	Energy(idx, d int, sys ParticleSystem) float64

	// BeforeEvaluate is called by a solver right before Evaluate or
	// EvaluateEnergy for the same particle.
	BeforeEvaluate(idx, d int, sys ParticleSystem)

	// BeforeIteration and AfterIteration bracket each solver iteration.
	BeforeIteration()
	AfterIteration()

	SetParticleSystem(sys ParticleSystem)
	SetDomainNumber(d int)
}

// Term indices used by Stats.
const (
	Primary = iota
	Secondary
	Correction
	NumTerms
)

// Stats is a snapshot of per-iteration running statistics.  GradMag and
// Energy hold means over Evaluations calls, indexed by Primary, Secondary and
// Correction.
type Stats struct {
	Evaluations int
	GradMag     [NumTerms]float64
	Energy      [NumTerms]float64
}

// StatsReporter is implemented by vector functions that keep running
// statistics for the current iteration.
type StatsReporter interface {
	Stats() Stats
}

// Validator is implemented by vector functions that can check their own
// configuration before a solver starts iterating.
type Validator interface {
	Validate() error
}
