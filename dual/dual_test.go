package dual

import (
	"errors"
	"sync"
	"testing"

	"github.com/daniel-perry/shapeworks"
	"github.com/daniel-perry/shapeworks/psys"
	"github.com/daniel-perry/shapeworks/terms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func stubs() (p, s, c *terms.Constant) {
	p = &terms.Constant{Grad: r3.Vec{X: 1, Y: 2, Z: 3}, MaxMove: 2, Value: 4}
	s = &terms.Constant{Grad: r3.Vec{X: -1, Y: 0, Z: 5}, MaxMove: 7, Value: 9}
	c = &terms.Constant{Grad: r3.Vec{X: 0, Y: 8, Z: 0}, MaxMove: 11, Value: 13}
	return p, s, c
}

func TestNeitherOn(t *testing.T) {
	p, s, c := stubs()
	fn := New(Primary(p), Secondary(s), Correction(c), PrimaryOn(false), SecondaryOn(false),
		GradientScaling(3), CorrectionScaling(2, 2))

	grad, maxmove := fn.Evaluate(0, 0, nil)
	assert.Equal(t, r3.Vec{}, grad)
	assert.Equal(t, 0.0, maxmove)

	grad, maxmove, energy := fn.EvaluateEnergy(0, 0, nil)
	assert.Equal(t, r3.Vec{}, grad)
	assert.Equal(t, 0.0, maxmove)
	assert.Equal(t, 0.0, energy)
	assert.Equal(t, 0.0, fn.Energy(0, 0, nil))

	for _, term := range []*terms.Constant{p, s, c} {
		assert.Equal(t, terms.Calls{}, term.Calls())
	}
	assert.Equal(t, 2, fn.Evaluations())
}

func TestNeitherOnNeedsNoTerms(t *testing.T) {
	fn := New(PrimaryOn(false))
	require.NoError(t, fn.Validate())
	grad, maxmove := fn.Evaluate(3, 1, nil)
	assert.Equal(t, r3.Vec{}, grad)
	assert.Equal(t, 0.0, maxmove)
}

func TestPrimaryOnly(t *testing.T) {
	p, s, c := stubs()
	fn := New(Primary(p), Secondary(s), Correction(c), GradientScaling(10), EnergyScaling(10), CorrectionScaling(10, 10))

	grad, maxmove := fn.Evaluate(0, 0, nil)
	assert.Equal(t, p.Grad, grad)
	assert.Equal(t, p.MaxMove, maxmove)

	grad, maxmove, energy := fn.EvaluateEnergy(1, 0, nil)
	assert.Equal(t, p.Grad, grad)
	assert.Equal(t, p.MaxMove, maxmove)
	assert.Equal(t, p.Value, energy)
	assert.Equal(t, p.Value, fn.Energy(1, 0, nil))

	fn.BeforeIteration()
	fn.BeforeEvaluate(0, 0, nil)
	fn.AfterIteration()

	assert.Equal(t, terms.Calls{Evaluate: 2, Energy: 1, BeforeEvaluate: 1, BeforeIteration: 1, AfterIteration: 1}, p.Calls())
	assert.Equal(t, terms.Calls{}, s.Calls())
	assert.Equal(t, terms.Calls{}, c.Calls())
}

func TestSecondaryOnly(t *testing.T) {
	tests := []struct {
		g, e float64
	}{
		{0, 0},
		{0.5, 0.25},
		{1, 1},
		{-2, 3},
	}
	for _, tt := range tests {
		p, s, c := stubs()
		fn := New(Primary(p), Secondary(s), Correction(c), PrimaryOn(false), SecondaryOn(true),
			GradientScaling(100), EnergyScaling(100), CorrectionScaling(tt.g, tt.e))

		grad, maxmove, energy := fn.EvaluateEnergy(0, 0, nil)
		want := r3.Add(s.Grad, r3.Scale(tt.g, c.Grad))
		if grad != want {
			t.Errorf("g=%v e=%v: gradient %v, want %v", tt.g, tt.e, grad, want)
		}
		if want := s.Value + tt.e*c.Value; energy != want {
			t.Errorf("g=%v e=%v: energy %v, want %v", tt.g, tt.e, energy, want)
		}
		if want := s.MaxMove + tt.e*c.MaxMove; maxmove != want {
			t.Errorf("g=%v e=%v: maxmove %v, want %v", tt.g, tt.e, maxmove, want)
		}
		if want := s.Value + tt.e*c.Value; fn.Energy(0, 0, nil) != want {
			t.Errorf("g=%v e=%v: Energy %v, want %v", tt.g, tt.e, fn.Energy(0, 0, nil), want)
		}
		if n := p.Calls(); n != (terms.Calls{}) {
			t.Errorf("g=%v e=%v: primary was called: %+v", tt.g, tt.e, n)
		}
	}
}

func TestBothOn(t *testing.T) {
	p := &terms.Constant{Grad: r3.Vec{X: 1}, MaxMove: 1, Value: 1}
	s := &terms.Constant{Grad: r3.Vec{Y: 1}, MaxMove: 5, Value: 2}
	c := &terms.Constant{Grad: r3.Vec{Z: 1}, MaxMove: 1, Value: 4}
	fn := New(Primary(p), Secondary(s), Correction(c), SecondaryOn(true),
		GradientScaling(2), EnergyScaling(3), CorrectionScaling(0.5, 0.25))

	grad, _, energy := fn.EvaluateEnergy(0, 0, nil)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 0.5}, grad)
	assert.Equal(t, 8.0, energy)
	assert.Equal(t, 8.0, fn.Energy(0, 0, nil))

	for _, term := range []*terms.Constant{p, s, c} {
		assert.Equal(t, 1, term.Calls().Evaluate)
	}
}

func TestStepBound(t *testing.T) {
	tests := []struct {
		name                   string
		primary, sec, corr, ec float64
		want                   float64
	}{
		{"primary smaller", 3, 5, 2, 0.5, 3},
		{"secondary smaller", 5, 3, 2, 0.5, 4},
		{"equal", 4, 4, 2, 0.5, 4},
		{"no correction weight", 5, 3, 2, 0, 3},
		{"primary zero", 0, 3, 2, 0.5, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fn := New(
				Primary(&terms.Constant{MaxMove: tt.primary}),
				Secondary(&terms.Constant{MaxMove: tt.sec}),
				Correction(&terms.Constant{MaxMove: tt.corr}),
				SecondaryOn(true),
				CorrectionScaling(1, tt.ec),
			)
			_, maxmove := fn.Evaluate(0, 0, nil)
			assert.Equal(t, tt.want, maxmove)
			_, maxmove, _ = fn.EvaluateEnergy(0, 0, nil)
			assert.Equal(t, tt.want, maxmove)
		})
	}
}

func TestResetLaw(t *testing.T) {
	p := &terms.Constant{Grad: r3.Vec{Y: 3, Z: 4}, MaxMove: 1, Value: 7}
	s := &terms.Constant{Grad: r3.Vec{X: 2}, MaxMove: 1, Value: -1.5}
	c := &terms.Constant{Grad: r3.Vec{Z: 0.25}, MaxMove: 1, Value: 0.5}
	fn := New(Primary(p), Secondary(s), Correction(c), SecondaryOn(true))

	for i := 0; i < 3; i++ {
		fn.EvaluateEnergy(i, 0, nil)
	}
	fn.BeforeIteration()
	assert.Equal(t, shapeworks.Stats{}, fn.Stats())
	for _, mean := range []float64{
		fn.MeanGradientPrimary(), fn.MeanGradientSecondary(), fn.MeanGradientCorrection(),
		fn.MeanEnergyPrimary(), fn.MeanEnergySecondary(), fn.MeanEnergyCorrection(),
	} {
		assert.Equal(t, 0.0, mean)
	}

	const n = 5
	for i := 0; i < n; i++ {
		fn.EvaluateEnergy(i, 0, nil)
	}
	assert.Equal(t, n, fn.Evaluations())
	assert.Equal(t, 5.0, fn.MeanGradientPrimary())
	assert.Equal(t, 2.0, fn.MeanGradientSecondary())
	assert.Equal(t, 0.25, fn.MeanGradientCorrection())
	assert.Equal(t, 7.0, fn.MeanEnergyPrimary())
	assert.Equal(t, -1.5, fn.MeanEnergySecondary())
	assert.Equal(t, 0.5, fn.MeanEnergyCorrection())

	st := fn.Stats()
	assert.Equal(t, n, st.Evaluations)
	assert.Equal(t, [shapeworks.NumTerms]float64{5, 2, 0.25}, st.GradMag)
	assert.Equal(t, [shapeworks.NumTerms]float64{7, -1.5, 0.5}, st.Energy)
}

func TestEvaluateSkipsEnergyStats(t *testing.T) {
	p := &terms.Constant{Grad: r3.Vec{X: 2}, MaxMove: 1, Value: 7}
	fn := New(Primary(p))

	fn.Evaluate(0, 0, nil)
	fn.Evaluate(1, 0, nil)
	assert.Equal(t, 2, fn.Evaluations())
	assert.Equal(t, 2.0, fn.MeanGradientPrimary())
	assert.Equal(t, 0.0, fn.MeanEnergyPrimary())
}

func TestEnergyLeavesStatsAlone(t *testing.T) {
	p, s, c := stubs()
	fn := New(Primary(p), Secondary(s), Correction(c), SecondaryOn(true))

	const k = 4
	for i := 0; i < k; i++ {
		fn.Energy(i, 0, nil)
	}
	assert.Equal(t, 0, fn.Evaluations())

	fn.Evaluate(0, 0, nil)
	assert.Equal(t, 1, fn.Evaluations())
	assert.Equal(t, k, p.Calls().Energy)
	assert.Equal(t, 1, p.Calls().Evaluate)
}

func TestEndToEnd(t *testing.T) {
	stub := &terms.Constant{Grad: r3.Vec{X: 1}, MaxMove: 2, Value: 4}
	fn := New(Primary(stub))

	fn.BeforeIteration()
	for i := 0; i < 3; i++ {
		grad, maxmove, energy := fn.EvaluateEnergy(i, 0, nil)
		assert.Equal(t, r3.Vec{X: 1}, grad)
		assert.Equal(t, 2.0, maxmove)
		assert.Equal(t, 4.0, energy)
	}
	assert.Equal(t, 1.0, fn.MeanGradientPrimary())
	assert.Equal(t, 4.0, fn.MeanEnergyPrimary())
	assert.Equal(t, 0.0, fn.MeanGradientSecondary())
	assert.Equal(t, 3, fn.Evaluations())
}

func TestNested(t *testing.T) {
	p, s, c := stubs()
	inner := New(Primary(p), Secondary(s), Correction(c), PrimaryOn(false), SecondaryOn(true), CorrectionScaling(1, 1))
	outer := New(Primary(inner))

	grad, maxmove, energy := outer.EvaluateEnergy(0, 0, nil)
	assert.Equal(t, r3.Add(s.Grad, c.Grad), grad)
	assert.Equal(t, s.MaxMove+c.MaxMove, maxmove)
	assert.Equal(t, s.Value+c.Value, energy)

	outer.BeforeIteration()
	assert.Equal(t, 0, inner.Evaluations())
	assert.Equal(t, 1, s.Calls().BeforeIteration)
	assert.Equal(t, 0, p.Calls().BeforeIteration)
}

func TestValidate(t *testing.T) {
	p, s, c := stubs()
	tests := []struct {
		name string
		fn   *Combinator
		ok   bool
	}{
		{"default without primary", New(), false},
		{"default", New(Primary(p)), true},
		{"secondary without correction", New(Primary(p), Secondary(s), SecondaryOn(true)), false},
		{"secondary only", New(Secondary(s), Correction(c), PrimaryOn(false), SecondaryOn(true)), true},
		{"secondary off ignores empty slots", New(Primary(p), SecondaryOn(false)), true},
		{"all", New(Primary(p), Secondary(s), Correction(c), SecondaryOn(true)), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, shapeworks.ErrMissingTerm), "got %v", err)
		})
	}
}

func TestMissingTermPanics(t *testing.T) {
	assert.Panics(t, func() { New().Evaluate(0, 0, nil) })
	assert.Panics(t, func() {
		p, s, _ := stubs()
		New(Primary(p), Secondary(s), SecondaryOn(true)).EvaluateEnergy(0, 0, nil)
	})
	assert.Panics(t, func() { New().Energy(0, 0, nil) })
}

func TestPropagation(t *testing.T) {
	sys := psys.New()
	fn := New()
	fn.SetDomainNumber(3)
	fn.SetParticleSystem(sys)

	p, s, c := stubs()
	fn.SetPrimary(p)
	assert.Equal(t, 3, p.DomainNumber())
	assert.Same(t, sys, p.ParticleSystem())

	fn.SetSecondary(s)
	fn.SetDomainNumber(5)
	assert.Equal(t, 5, p.DomainNumber())
	assert.Equal(t, 5, s.DomainNumber())

	// c is assigned later and only sees the values current at that point.
	fn.SetCorrection(c)
	assert.Equal(t, 5, c.DomainNumber())
	assert.Same(t, sys, c.ParticleSystem())
	assert.Same(t, c, fn.Correction())
}

func TestSharedTerm(t *testing.T) {
	shared := &terms.Constant{Grad: r3.Vec{X: 1}, MaxMove: 1, Value: 1}
	a := New(Primary(shared))
	b := New(Primary(shared))

	a.Evaluate(0, 0, nil)
	b.Evaluate(0, 1, nil)
	assert.Equal(t, 2, shared.Calls().Evaluate)
	assert.Equal(t, 1, a.Evaluations())
	assert.Equal(t, 1, b.Evaluations())
}

func TestConcurrentStats(t *testing.T) {
	p := &terms.Constant{Grad: r3.Vec{X: 0.5}, MaxMove: 1, Value: 2}
	fn := New(Primary(p))
	fn.BeforeIteration()

	const workers, calls = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				fn.EvaluateEnergy(i, w, nil)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*calls, fn.Evaluations())
	assert.Equal(t, 0.5, fn.MeanGradientPrimary())
	assert.Equal(t, 2.0, fn.MeanEnergyPrimary())
}

func TestScalingAccessors(t *testing.T) {
	fn := New()
	assert.True(t, fn.PrimaryOn())
	assert.False(t, fn.SecondaryOn())
	assert.Equal(t, DefaultGradientScaling, fn.GradientScaling())
	assert.Equal(t, DefaultEnergyScaling, fn.EnergyScaling())
	assert.Equal(t, DefaultCorrectionGradientScaling, fn.CorrectionGradientScaling())
	assert.Equal(t, DefaultCorrectionEnergyScaling, fn.CorrectionEnergyScaling())

	fn.SetGradientScaling(-1)
	fn.SetEnergyScaling(2)
	fn.SetCorrectionGradientScaling(3)
	fn.SetCorrectionEnergyScaling(4)
	fn.SetPrimaryOn(false)
	fn.SetSecondaryOn(true)
	assert.Equal(t, -1.0, fn.GradientScaling())
	assert.Equal(t, 2.0, fn.EnergyScaling())
	assert.Equal(t, 3.0, fn.CorrectionGradientScaling())
	assert.Equal(t, 4.0, fn.CorrectionEnergyScaling())
	assert.False(t, fn.PrimaryOn())
	assert.True(t, fn.SecondaryOn())
}

func TestHooksDoNotAllocate(t *testing.T) {
	if raceEnabled {
		t.Skip("allocation counts are unreliable under the race detector")
	}
	p, s, c := stubs()
	fn := New(Primary(p), Secondary(s), Correction(c), SecondaryOn(true))

	allocs := testing.AllocsPerRun(100, func() {
		fn.BeforeEvaluate(0, 0, nil)
		fn.AfterIteration()
	})
	assert.Equal(t, 0.0, allocs)
	assert.Equal(t, 101, s.Calls().BeforeEvaluate)
	assert.Equal(t, 101, c.Calls().AfterIteration)
}

func TestNilPointerTerm(t *testing.T) {
	var missing *terms.Constant

	fn := New()
	fn.SetParticleSystem(psys.New())
	assert.NotPanics(t, func() { fn.SetPrimary(missing) })
	assert.Nil(t, fn.Primary())

	err := fn.Validate()
	assert.True(t, errors.Is(err, shapeworks.ErrMissingTerm), "got %v", err)
	assert.Panics(t, func() { fn.Evaluate(0, 0, nil) })

	fn = New(Primary(&terms.Constant{}), Secondary(missing), Correction(missing), SecondaryOn(true))
	assert.True(t, errors.Is(fn.Validate(), shapeworks.ErrMissingTerm))
}
