// Package dual combines up to three vector functions into one.
//
// A Combinator holds a primary term (usually the correspondence/entropy
// force), a secondary term (regularization) and a correction term
// (normalization) that is driven whenever the secondary term is.  It
// satisfies shapeworks.VectorFunction itself, so combinators nest.
//
// The step bound for the case where both primary and secondary terms are on
// is asymmetric: when the primary bound is the smaller one it is returned as
// is, without the correction contribution that is added in every other case.
package dual

import (
	"fmt"
	"sync"

	"github.com/daniel-perry/shapeworks"
	"gonum.org/v1/gonum/spatial/r3"
)

// Default relative scalings.
const (
	DefaultGradientScaling           = 1.0
	DefaultEnergyScaling             = 1.0
	DefaultCorrectionGradientScaling = 0.0
	DefaultCorrectionEnergyScaling   = 0.0
)

type Option func(*Combinator)

// Primary assigns the primary term, usually the correspondence force.
func Primary(fn shapeworks.VectorFunction) Option {
	return func(c *Combinator) { c.SetPrimary(fn) }
}

// Secondary assigns the secondary term, usually a regularization.
func Secondary(fn shapeworks.VectorFunction) Option {
	return func(c *Combinator) { c.SetSecondary(fn) }
}

// Correction assigns the correction term, driven whenever the secondary term
// is on.
func Correction(fn shapeworks.VectorFunction) Option {
	return func(c *Combinator) { c.SetCorrection(fn) }
}

func PrimaryOn(on bool) Option {
	return func(c *Combinator) { c.primaryOn = on }
}

func SecondaryOn(on bool) Option {
	return func(c *Combinator) { c.secondaryOn = on }
}

// GradientScaling sets the weight of the secondary gradient relative to the
// primary one.
func GradientScaling(r float64) Option {
	return func(c *Combinator) { c.gradScale = r }
}

// EnergyScaling sets the weight of the secondary energy relative to the
// primary one.
func EnergyScaling(r float64) Option {
	return func(c *Combinator) { c.energyScale = r }
}

// CorrectionScaling sets the gradient and energy weights of the correction
// term.  The energy weight also scales the correction step bound.
func CorrectionScaling(gradient, energy float64) Option {
	return func(c *Combinator) {
		c.corrGradScale = gradient
		c.corrEnergyScale = energy
	}
}

// Combinator merges the gradients, step bounds and energies of its enabled
// terms and keeps running statistics that are reset by BeforeIteration.
// Configure it before the first evaluation; Evaluate, EvaluateEnergy and
// Energy are then safe to call concurrently.
type Combinator struct {
	shapeworks.Base

	primary    shapeworks.VectorFunction
	secondary  shapeworks.VectorFunction
	correction shapeworks.VectorFunction

	primaryOn   bool
	secondaryOn bool

	gradScale       float64
	energyScale     float64
	corrGradScale   float64
	corrEnergyScale float64

	mu        sync.Mutex
	counter   int
	gradSum   [shapeworks.NumTerms]float64
	energySum [shapeworks.NumTerms]float64
}

// New returns a combinator with the primary term on and the secondary term
// off, configured by opts.
func New(opts ...Option) *Combinator {
	c := &Combinator{
		primaryOn:       true,
		gradScale:       DefaultGradientScaling,
		energyScale:     DefaultEnergyScaling,
		corrGradScale:   DefaultCorrectionGradientScaling,
		corrEnergyScale: DefaultCorrectionEnergyScaling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type result struct {
	grad    r3.Vec
	maxmove float64
	energy  float64
}

func eval(fn shapeworks.VectorFunction, idx, d int, sys shapeworks.ParticleSystem, withEnergy bool) result {
	if withEnergy {
		g, m, e := fn.EvaluateEnergy(idx, d, sys)
		return result{grad: g, maxmove: m, energy: e}
	}
	g, m := fn.Evaluate(idx, d, sys)
	return result{grad: g, maxmove: m}
}

// Evaluate returns the combined gradient and step bound of particle idx in
// domain d.  It counts toward the running statistics but adds no energy.
func (c *Combinator) Evaluate(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64) {
	grad, maxmove, _ := c.evaluate(idx, d, sys, false)
	return grad, maxmove
}

// EvaluateEnergy is Evaluate that also returns the combined energy and adds
// each evaluated term's energy to the running statistics.
func (c *Combinator) EvaluateEnergy(idx, d int, sys shapeworks.ParticleSystem) (r3.Vec, float64, float64) {
	return c.evaluate(idx, d, sys, true)
}

func (c *Combinator) evaluate(idx, d int, sys shapeworks.ParticleSystem, withEnergy bool) (r3.Vec, float64, float64) {
	aOn, bOn := c.primaryOn, c.secondaryOn

	var res [shapeworks.NumTerms]result
	if aOn {
		res[shapeworks.Primary] = eval(c.term(shapeworks.Primary), idx, d, sys, withEnergy)
	}
	if bOn {
		res[shapeworks.Secondary] = eval(c.term(shapeworks.Secondary), idx, d, sys, withEnergy)
		res[shapeworks.Correction] = eval(c.term(shapeworks.Correction), idx, d, sys, withEnergy)
	}
	c.record(&res, aOn, bOn, withEnergy)

	a, b, cc := res[shapeworks.Primary], res[shapeworks.Secondary], res[shapeworks.Correction]
	switch {
	case aOn && bOn:
		grad := r3.Add(r3.Add(a.grad, r3.Scale(c.gradScale, b.grad)), r3.Scale(c.corrGradScale, cc.grad))
		energy := a.energy + c.energyScale*b.energy + c.corrEnergyScale*cc.energy
		maxmove := a.maxmove
		if a.maxmove > b.maxmove {
			maxmove = b.maxmove + c.corrEnergyScale*cc.maxmove
		}
		return grad, maxmove, energy
	case bOn:
		grad := r3.Add(b.grad, r3.Scale(c.corrGradScale, cc.grad))
		return grad, b.maxmove + c.corrEnergyScale*cc.maxmove, b.energy + c.corrEnergyScale*cc.energy
	case aOn:
		return a.grad, a.maxmove, a.energy
	}
	// nothing is on: hold the particle still
	return r3.Vec{}, 0, 0
}

func (c *Combinator) record(res *[shapeworks.NumTerms]result, aOn, bOn, withEnergy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	for i := range res {
		if i == shapeworks.Primary && !aOn || i != shapeworks.Primary && !bOn {
			continue
		}
		c.gradSum[i] += r3.Norm(res[i].grad)
		if withEnergy {
			c.energySum[i] += res[i].energy
		}
	}
}

// Energy returns the weighted energy of the enabled terms.  It does not touch
// the running statistics.
func (c *Combinator) Energy(idx, d int, sys shapeworks.ParticleSystem) float64 {
	aOn, bOn := c.primaryOn, c.secondaryOn

	var ea, eb, ec float64
	if aOn {
		ea = c.term(shapeworks.Primary).Energy(idx, d, sys)
	}
	if bOn {
		eb = c.term(shapeworks.Secondary).Energy(idx, d, sys)
		ec = c.term(shapeworks.Correction).Energy(idx, d, sys)
	}

	switch {
	case aOn && bOn:
		return ea + c.energyScale*eb + c.corrEnergyScale*ec
	case bOn:
		return eb + c.corrEnergyScale*ec
	case aOn:
		return ea
	}
	return 0
}

// BeforeEvaluate forwards to the enabled terms.
func (c *Combinator) BeforeEvaluate(idx, d int, sys shapeworks.ParticleSystem) {
	fns, n := c.enabled()
	for _, fn := range fns[:n] {
		fn.BeforeEvaluate(idx, d, sys)
	}
}

// BeforeIteration forwards to the enabled terms and then zeroes the running
// statistics.  It is the only place they are reset.
func (c *Combinator) BeforeIteration() {
	fns, n := c.enabled()
	for _, fn := range fns[:n] {
		fn.BeforeIteration()
	}

	c.mu.Lock()
	c.counter = 0
	c.gradSum = [shapeworks.NumTerms]float64{}
	c.energySum = [shapeworks.NumTerms]float64{}
	c.mu.Unlock()
}

// AfterIteration forwards to the enabled terms.  The statistics are left
// for the caller to read.
func (c *Combinator) AfterIteration() {
	fns, n := c.enabled()
	for _, fn := range fns[:n] {
		fn.AfterIteration()
	}
}

// enabled returns the terms to drive in fns[:n].
func (c *Combinator) enabled() (fns [shapeworks.NumTerms]shapeworks.VectorFunction, n int) {
	if c.primaryOn {
		fns[n] = c.term(shapeworks.Primary)
		n++
	}
	if c.secondaryOn {
		fns[n] = c.term(shapeworks.Secondary)
		fns[n+1] = c.term(shapeworks.Correction)
		n += 2
	}
	return fns, n
}

var slotNames = [shapeworks.NumTerms]string{"primary", "secondary", "correction"}

// term returns the function in slot i and panics if it was never assigned.
func (c *Combinator) term(i int) shapeworks.VectorFunction {
	fn := c.slot(i)
	if fn == nil {
		panic(fmt.Errorf("dual: %s: %w", slotNames[i], shapeworks.ErrMissingTerm))
	}
	return fn
}

func (c *Combinator) slot(i int) shapeworks.VectorFunction {
	switch i {
	case shapeworks.Primary:
		return c.primary
	case shapeworks.Secondary:
		return c.secondary
	default:
		return c.correction
	}
}

// Validate reports an enabled slot with no function assigned.  The
// correction slot is required whenever the secondary term is on.
func (c *Combinator) Validate() error {
	if c.primaryOn && c.primary == nil {
		return fmt.Errorf("dual: %s: %w", slotNames[shapeworks.Primary], shapeworks.ErrMissingTerm)
	}
	if c.secondaryOn {
		for _, i := range []int{shapeworks.Secondary, shapeworks.Correction} {
			if c.slot(i) == nil {
				return fmt.Errorf("dual: %s: %w", slotNames[i], shapeworks.ErrMissingTerm)
			}
		}
	}
	return nil
}
