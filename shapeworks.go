package shapeworks

import (
	"sync/atomic"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Base carries the domain number and particle system that a vector function
// was configured with, and no-op lifecycle hooks.  Embed it and override what
// you need.
type Base struct {
	system ParticleSystem
	domain int
}

func (b *Base) SetParticleSystem(sys ParticleSystem) { b.system = sys }

func (b *Base) ParticleSystem() ParticleSystem { return b.system }

func (b *Base) SetDomainNumber(d int) { b.domain = d }

func (b *Base) DomainNumber() int { return b.domain }

func (b *Base) BeforeEvaluate(idx, d int, sys ParticleSystem) {}

func (b *Base) BeforeIteration() {}

func (b *Base) AfterIteration() {}

// Printer wraps a VectorFunction and logs every evaluation at debug level.
// Count is the number of evaluations seen so far.
type Printer struct {
	VectorFunction
	Log   *zap.Logger
	count atomic.Int64
}

func NewPrinter(fn VectorFunction, log *zap.Logger) *Printer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Printer{VectorFunction: fn, Log: log}
}

func (p *Printer) Count() int { return int(p.count.Load()) }

func (p *Printer) Evaluate(idx, d int, sys ParticleSystem) (r3.Vec, float64) {
	grad, maxmove := p.VectorFunction.Evaluate(idx, d, sys)
	p.print(idx, d, grad, maxmove)
	return grad, maxmove
}

func (p *Printer) EvaluateEnergy(idx, d int, sys ParticleSystem) (r3.Vec, float64, float64) {
	grad, maxmove, energy := p.VectorFunction.EvaluateEnergy(idx, d, sys)
	p.print(idx, d, grad, maxmove, zap.Float64("energy", energy))
	return grad, maxmove, energy
}

func (p *Printer) print(idx, d int, grad r3.Vec, maxmove float64, extra ...zap.Field) {
	n := p.count.Add(1)
	if ce := p.Log.Check(zap.DebugLevel, "evaluate"); ce != nil {
		fields := []zap.Field{
			zap.Int64("count", n),
			zap.Int("particle", idx),
			zap.Int("domain", d),
			zap.Float64s("grad", []float64{grad.X, grad.Y, grad.Z}),
			zap.Float64("maxmove", maxmove),
		}
		ce.Write(append(fields, extra...)...)
	}
}

// Stats forwards to the wrapped function, if it keeps statistics.
func (p *Printer) Stats() Stats {
	if sr, ok := p.VectorFunction.(StatsReporter); ok {
		return sr.Stats()
	}
	return Stats{}
}

// Validate forwards to the wrapped function, if it can validate itself.
func (p *Printer) Validate() error {
	if v, ok := p.VectorFunction.(Validator); ok {
		return v.Validate()
	}
	return nil
}
