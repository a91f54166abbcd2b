package dual

import "github.com/daniel-perry/shapeworks"

// Stats returns the running means accumulated since the last
// BeforeIteration.  Read them before the next BeforeIteration resets them.
func (c *Combinator) Stats() shapeworks.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := shapeworks.Stats{Evaluations: c.counter}
	for i := 0; i < shapeworks.NumTerms; i++ {
		st.GradMag[i] = c.mean(c.gradSum[i])
		st.Energy[i] = c.mean(c.energySum[i])
	}
	return st
}

// Evaluations is the number of Evaluate and EvaluateEnergy calls since the
// last BeforeIteration.
func (c *Combinator) Evaluations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

func (c *Combinator) MeanGradientPrimary() float64    { return c.meanOf(&c.gradSum, shapeworks.Primary) }
func (c *Combinator) MeanGradientSecondary() float64  { return c.meanOf(&c.gradSum, shapeworks.Secondary) }
func (c *Combinator) MeanGradientCorrection() float64 { return c.meanOf(&c.gradSum, shapeworks.Correction) }

func (c *Combinator) MeanEnergyPrimary() float64    { return c.meanOf(&c.energySum, shapeworks.Primary) }
func (c *Combinator) MeanEnergySecondary() float64  { return c.meanOf(&c.energySum, shapeworks.Secondary) }
func (c *Combinator) MeanEnergyCorrection() float64 { return c.meanOf(&c.energySum, shapeworks.Correction) }

func (c *Combinator) meanOf(sums *[shapeworks.NumTerms]float64, i int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mean(sums[i])
}

// mean must be called with c.mu held.
func (c *Combinator) mean(sum float64) float64 {
	if c.counter == 0 {
		return 0
	}
	return sum / float64(c.counter)
}
