// Package psys holds particle positions for every domain of a multi-object
// correspondence problem.
package psys

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/daniel-perry/shapeworks/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// System is a concurrency safe container of particle positions.  Each domain
// has its own constraint; SetPosition projects through it.
type System struct {
	mu      sync.RWMutex
	domains []domain.Domain
	pos     [][]r3.Vec
}

func New() *System { return &System{} }

// AddDomain appends a domain with the given initial positions, projected
// onto dom, and returns its index.  A nil dom is unconstrained.
func (s *System) AddDomain(dom domain.Domain, positions []r3.Vec) int {
	if dom == nil {
		dom = domain.Free{}
	}
	pos := make([]r3.Vec, len(positions))
	for i, p := range positions {
		pos[i] = dom.Nearest(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = append(s.domains, dom)
	s.pos = append(s.pos, pos)
	return len(s.pos) - 1
}

func (s *System) NumDomains() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pos)
}

func (s *System) NumParticles(d int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pos[d])
}

func (s *System) Position(idx, d int) r3.Vec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos[d][idx]
}

// Positions returns a copy of the positions of domain d.
func (s *System) Positions(d int) []r3.Vec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]r3.Vec{}, s.pos[d]...)
}

// SetPosition moves particle idx of domain d to the point of the domain
// nearest p and returns where it landed.
func (s *System) SetPosition(idx, d int, p r3.Vec) r3.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d < 0 || d >= len(s.pos) || idx < 0 || idx >= len(s.pos[d]) {
		panic(fmt.Sprintf("particle %v of domain %v does not exist", idx, d))
	}
	p = s.domains[d].Nearest(p)
	s.pos[d][idx] = p
	return p
}

// ShapeVector flattens the positions of domain d into x0,y0,z0,x1,...
func (s *System) ShapeVector(d int) *mat.VecDense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := make([]float64, 0, 3*len(s.pos[d]))
	for _, p := range s.pos[d] {
		data = append(data, p.X, p.Y, p.Z)
	}
	return mat.NewVecDense(len(data), data)
}

// RandPop generates n points uniformly distributed in the box bounded by low
// and up.  A nil rng uses a fixed seed.
func RandPop(n int, low, up r3.Vec, rng *rand.Rand) []r3.Vec {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	points := make([]r3.Vec, n)
	for i := range points {
		points[i] = r3.Vec{
			X: low.X + rng.Float64()*(up.X-low.X),
			Y: low.Y + rng.Float64()*(up.Y-low.Y),
			Z: low.Z + rng.Float64()*(up.Z-low.Z),
		}
	}
	return points
}
