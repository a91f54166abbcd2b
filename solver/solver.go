// Package solver moves particles down the energy gradient reported by a
// shapeworks.VectorFunction.
//
// Each iteration brackets the evaluation of every particle of every domain
// with BeforeIteration and AfterIteration.  All particles of all domains are
// evaluated concurrently against the same positions before any of them is
// moved, so a function never observes a half-updated system, even when it
// couples domains.  Every particle carries its own time step, which grows
// while its energy keeps dropping and is halved otherwise.
package solver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/daniel-perry/shapeworks"
	"github.com/daniel-perry/shapeworks/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrEmpty = errors.New("solver: particle system has no domains")

const (
	DefaultTimeStep = 1.0
	DefaultMinStep  = 1e-6
	DefaultMaxStep  = 10.0
	DefaultGrowth   = 1.1
	// Shrink is the factor applied to a particle's time step when its energy
	// did not decrease.
	Shrink = 0.5
)

// System is the particle system a solver moves particles in.
type System interface {
	shapeworks.ParticleSystem
	// SetPosition moves a particle and returns where the domain constraint
	// put it.
	SetPosition(idx, d int, p r3.Vec) r3.Vec
	ShapeVector(d int) *mat.VecDense
}

// Observer is notified after every iteration with the total energy and the
// function's running statistics (zero if it keeps none).
type Observer interface {
	Observe(iter int, energy float64, st shapeworks.Stats)
}

type Option func(*Iterator)

// Workers limits the number of particles evaluated concurrently.
func Workers(n int) Option {
	return func(it *Iterator) { it.Workers = n }
}

// TimeStep sets the initial time step of every particle.
func TimeStep(dt float64) Option {
	return func(it *Iterator) { it.TimeStep = dt }
}

func StepBounds(min, max float64) Option {
	return func(it *Iterator) {
		it.MinStep = min
		it.MaxStep = max
	}
}

// Growth sets the factor applied to a particle's time step after its energy
// decreased.
func Growth(g float64) Option {
	return func(it *Iterator) { it.Growth = g }
}

func DB(db *sql.DB) Option {
	return func(it *Iterator) { it.Db = db }
}

func Logger(l *zap.Logger) Option {
	return func(it *Iterator) { it.Log = l }
}

func Observe(obs ...Observer) Option {
	return func(it *Iterator) { it.Observers = append(it.Observers, obs...) }
}

// Reconstruct queues the shape vector of every domain on q every n
// iterations, unless an equal shape is already waiting.
func Reconstruct(q *queue.Queue, n int) Option {
	return func(it *Iterator) {
		it.Queue = q
		it.ReconstructEvery = n
	}
}

type Iterator struct {
	Fn  shapeworks.VectorFunction
	Sys System

	Workers  int
	TimeStep float64
	MinStep  float64
	MaxStep  float64
	Growth   float64

	Db               *sql.DB
	Log              *zap.Logger
	Observers        []Observer
	Queue            *queue.Queue
	ReconstructEvery int

	count int
	dt    [][]float64
	prev  [][]float64
}

type update struct {
	grad    r3.Vec
	maxmove float64
	energy  float64
}

// NewIterator hands sys to fn and prepares the output tables when a DB is
// configured.
func NewIterator(fn shapeworks.VectorFunction, sys System, opts ...Option) (*Iterator, error) {
	if sys.NumDomains() == 0 {
		return nil, ErrEmpty
	}

	it := &Iterator{
		Fn:       fn,
		Sys:      sys,
		Workers:  runtime.GOMAXPROCS(0),
		TimeStep: DefaultTimeStep,
		MinStep:  DefaultMinStep,
		MaxStep:  DefaultMaxStep,
		Growth:   DefaultGrowth,
		Log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(it)
	}
	if it.Log == nil {
		it.Log = zap.NewNop()
	}
	if it.Workers < 1 {
		it.Workers = 1
	}

	fn.SetParticleSystem(sys)
	if err := it.initdb(); err != nil {
		return nil, err
	}
	return it, nil
}

// Count is the number of iterations run so far.
func (it *Iterator) Count() int { return it.count }

// StepSize returns the current time step of particle idx in domain d.
func (it *Iterator) StepSize(idx, d int) float64 {
	if d >= len(it.dt) || idx >= len(it.dt[d]) {
		return it.TimeStep
	}
	return it.dt[d][idx]
}

// Iterate runs a single iteration and reports the total energy of the
// particle positions it started from and the number of evaluations n.  If
// evaluation fails no particle is moved.
func (it *Iterator) Iterate(ctx context.Context) (energy float64, n int, err error) {
	it.count++
	it.Fn.BeforeIteration()

	nd := it.Sys.NumDomains()
	it.grow(nd)

	updates := make([][]update, nd)
	for d := 0; d < nd; d++ {
		updates[d], err = it.evaluate(ctx, d)
		n += len(updates[d])
		if err != nil {
			it.Fn.AfterIteration()
			return math.Inf(1), n, err
		}
	}

	perDomain := make([]float64, nd)
	held := 0
	for d, us := range updates {
		energies := make([]float64, len(us))
		for i, u := range us {
			energies[i] = u.energy
			it.adapt(i, d, u.energy)
			if !it.move(i, d, u) {
				held++
			}
		}
		perDomain[d] = floats.Sum(energies)
	}

	it.Fn.AfterIteration()
	energy = floats.Sum(perDomain)

	var st shapeworks.Stats
	if sr, ok := it.Fn.(shapeworks.StatsReporter); ok {
		st = sr.Stats()
	}

	it.Log.Debug("iteration",
		zap.Int("iter", it.count),
		zap.Float64("energy", energy),
		zap.Int("evals", n),
		zap.Int("held", held),
		zap.Float64s("grad_mag", st.GradMag[:]),
		zap.Float64s("mean_energy", st.Energy[:]),
	)

	if err := it.updateDb(energy, st, perDomain); err != nil {
		return energy, n, err
	}
	for _, obs := range it.Observers {
		obs.Observe(it.count, energy, st)
	}
	it.reconstruct()
	return energy, n, nil
}

// evaluate computes the gradient of every particle in domain d against the
// current positions.
func (it *Iterator) evaluate(ctx context.Context, d int) ([]update, error) {
	np := it.Sys.NumParticles(d)
	updates := make([]update, np)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(it.Workers)
	for i := 0; i < np; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			it.Fn.BeforeEvaluate(i, d, it.Sys)
			grad, maxmove, energy := it.Fn.EvaluateEnergy(i, d, it.Sys)
			updates[i] = update{grad: grad, maxmove: maxmove, energy: energy}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return updates, fmt.Errorf("solver: domain %v: %w", d, err)
	}
	return updates, nil
}

// adapt grows or shrinks the time step of a particle depending on whether its
// energy dropped since the previous iteration.
func (it *Iterator) adapt(idx, d int, energy float64) {
	prev := it.prev[d][idx]
	it.prev[d][idx] = energy
	if math.IsNaN(prev) {
		return
	}

	dt := it.dt[d][idx]
	if energy < prev {
		dt *= it.Growth
	} else if energy > prev {
		dt *= Shrink
	}
	it.dt[d][idx] = math.Max(it.MinStep, math.Min(it.MaxStep, dt))
}

// move steps a particle against its gradient, never farther than the step
// bound.  A step bound of zero, or a non-finite step, holds the particle in
// place.  It reports whether the particle was moved.
func (it *Iterator) move(idx, d int, u update) bool {
	if !(u.maxmove > 0) {
		return false
	}
	step := r3.Scale(-it.dt[d][idx], u.grad)
	norm := r3.Norm(step)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		it.Log.Warn("non-finite gradient, particle held",
			zap.Int("iter", it.count), zap.Int("domain", d), zap.Int("particle", idx))
		return false
	}
	if norm > u.maxmove {
		step = r3.Scale(u.maxmove/norm, step)
	}
	it.Sys.SetPosition(idx, d, r3.Add(it.Sys.Position(idx, d), step))
	return true
}

// grow sizes the per-particle bookkeeping to the particle system.
func (it *Iterator) grow(nd int) {
	for len(it.dt) < nd {
		it.dt = append(it.dt, nil)
		it.prev = append(it.prev, nil)
	}
	for d := 0; d < nd; d++ {
		for np := it.Sys.NumParticles(d); len(it.dt[d]) < np; {
			it.dt[d] = append(it.dt[d], it.TimeStep)
			it.prev[d] = append(it.prev[d], math.NaN())
		}
	}
}

func (it *Iterator) reconstruct() {
	if it.Queue == nil || it.ReconstructEvery <= 0 || it.count%it.ReconstructEvery != 0 {
		return
	}
	for d := 0; d < it.Sys.NumDomains(); d++ {
		if it.Sys.NumParticles(d) == 0 {
			continue
		}
		shape := it.Sys.ShapeVector(d)
		if !it.Queue.Contains(shape) {
			it.Queue.Push(shape)
		}
	}
}
