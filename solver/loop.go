package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/daniel-perry/shapeworks"
	"go.uber.org/zap"
)

// Solver drives an Iterator until one of its limits is reached.  A zero limit
// is not enforced.
type Solver struct {
	Iter *Iterator
	// MaxIter is the maximum number of iterations to run.
	MaxIter int
	// MaxEval is the maximum number of particle evaluations.
	MaxEval int
	// MaxNoImprove is the number of consecutive iterations whose energy
	// changed by less than Tolerance before the solver stops.
	MaxNoImprove int
	Tolerance    float64

	niter     int
	neval     int
	noimprove int
	energy    float64
	started   bool
	err       error
}

// Next runs one iteration and reports whether it did so.  Once a limit is
// reached or an error occurs it returns false; check Err afterwards.
func (s *Solver) Next(ctx context.Context) bool {
	if s.err != nil || s.done() {
		return false
	}
	if !s.started {
		s.started = true
		s.energy = math.Inf(1)
		if v, ok := s.Iter.Fn.(shapeworks.Validator); ok {
			if err := v.Validate(); err != nil {
				s.err = fmt.Errorf("solver: %w", err)
				return false
			}
		}
	}
	if err := ctx.Err(); err != nil {
		s.err = fmt.Errorf("solver: %w", err)
		return false
	}

	energy, n, err := s.Iter.Iterate(ctx)
	s.niter++
	s.neval += n
	if err != nil {
		s.err = err
		return false
	}

	if math.Abs(s.energy-energy) < s.Tolerance {
		s.noimprove++
	} else {
		s.noimprove = 0
	}
	s.energy = energy
	return true
}

// Run iterates until Next returns false.
func (s *Solver) Run(ctx context.Context) error {
	for s.Next(ctx) {
	}
	s.Iter.Log.Info("optimization finished",
		zap.Int("iterations", s.niter),
		zap.Int("evaluations", s.neval),
		zap.Float64("energy", s.energy),
		zap.Error(s.err),
	)
	return s.err
}

func (s *Solver) done() bool {
	switch {
	case s.MaxIter > 0 && s.niter >= s.MaxIter:
		return true
	case s.MaxEval > 0 && s.neval >= s.MaxEval:
		return true
	case s.MaxNoImprove > 0 && s.noimprove >= s.MaxNoImprove:
		return true
	}
	return false
}

// Converged reports whether the solver stopped because the energy settled.
func (s *Solver) Converged() bool {
	return s.MaxNoImprove > 0 && s.noimprove >= s.MaxNoImprove
}

func (s *Solver) Err() error { return s.err }

func (s *Solver) Niter() int { return s.niter }

func (s *Solver) Neval() int { return s.neval }

// Energy is the total energy reported by the most recent iteration.
func (s *Solver) Energy() float64 { return s.energy }
