package dual

import (
	"reflect"

	"github.com/daniel-perry/shapeworks"
)

// SetParticleSystem records sys and forwards it to every assigned term.
func (c *Combinator) SetParticleSystem(sys shapeworks.ParticleSystem) {
	c.Base.SetParticleSystem(sys)
	for i := 0; i < shapeworks.NumTerms; i++ {
		if fn := c.slot(i); fn != nil {
			fn.SetParticleSystem(sys)
		}
	}
}

// SetDomainNumber records d and forwards it to every assigned term.
func (c *Combinator) SetDomainNumber(d int) {
	c.Base.SetDomainNumber(d)
	for i := 0; i < shapeworks.NumTerms; i++ {
		if fn := c.slot(i); fn != nil {
			fn.SetDomainNumber(d)
		}
	}
}

// SetPrimary assigns the primary term and hands it the combinator's current
// domain number and particle system.  Terms assigned before SetDomainNumber
// or SetParticleSystem receive the later values too; terms assigned after
// only see what was set so far.  A nil term, including a nil pointer of a
// concrete type, clears the slot.
func (c *Combinator) SetPrimary(fn shapeworks.VectorFunction) {
	c.primary = c.propagate(fn)
}

func (c *Combinator) SetSecondary(fn shapeworks.VectorFunction) {
	c.secondary = c.propagate(fn)
}

func (c *Combinator) SetCorrection(fn shapeworks.VectorFunction) {
	c.correction = c.propagate(fn)
}

// propagate configures fn and returns it, or nil if fn holds no term.
func (c *Combinator) propagate(fn shapeworks.VectorFunction) shapeworks.VectorFunction {
	if isNil(fn) {
		return nil
	}
	fn.SetDomainNumber(c.DomainNumber())
	fn.SetParticleSystem(c.ParticleSystem())
	return fn
}

func isNil(fn shapeworks.VectorFunction) bool {
	if fn == nil {
		return true
	}
	switch v := reflect.ValueOf(fn); v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (c *Combinator) Primary() shapeworks.VectorFunction    { return c.primary }
func (c *Combinator) Secondary() shapeworks.VectorFunction  { return c.secondary }
func (c *Combinator) Correction() shapeworks.VectorFunction { return c.correction }

func (c *Combinator) SetPrimaryOn(on bool)   { c.primaryOn = on }
func (c *Combinator) PrimaryOn() bool        { return c.primaryOn }
func (c *Combinator) SetSecondaryOn(on bool) { c.secondaryOn = on }
func (c *Combinator) SecondaryOn() bool      { return c.secondaryOn }

// Relative scalings.  No range is enforced: negative weights are legal.

func (c *Combinator) SetGradientScaling(r float64) { c.gradScale = r }
func (c *Combinator) GradientScaling() float64     { return c.gradScale }

func (c *Combinator) SetEnergyScaling(r float64) { c.energyScale = r }
func (c *Combinator) EnergyScaling() float64     { return c.energyScale }

func (c *Combinator) SetCorrectionGradientScaling(r float64) { c.corrGradScale = r }
func (c *Combinator) CorrectionGradientScaling() float64     { return c.corrGradScale }

func (c *Combinator) SetCorrectionEnergyScaling(r float64) { c.corrEnergyScale = r }
func (c *Combinator) CorrectionEnergyScaling() float64     { return c.corrEnergyScale }
