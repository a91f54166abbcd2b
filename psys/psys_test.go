package psys

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/daniel-perry/shapeworks"
	"github.com/daniel-perry/shapeworks/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var _ shapeworks.ParticleSystem = (*System)(nil)

func TestAddDomainProjects(t *testing.T) {
	s := New()
	sphere := &domain.Sphere{Radius: 1}
	d := s.AddDomain(sphere, []r3.Vec{{X: 3}, {Y: -0.5}})
	require.Equal(t, 0, d)

	want := []r3.Vec{{X: 1}, {Y: -1}}
	if diff := cmp.Diff(want, s.Positions(d), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}

	d = s.AddDomain(nil, []r3.Vec{{X: 3}})
	assert.Equal(t, 1, d)
	assert.Equal(t, 2, s.NumDomains())
	assert.Equal(t, r3.Vec{X: 3}, s.Position(0, 1))
}

func TestSetPosition(t *testing.T) {
	s := New()
	d := s.AddDomain(domain.NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}), make([]r3.Vec, 2))

	got := s.SetPosition(1, d, r3.Vec{X: 2, Y: 0.5, Z: -1})
	assert.Equal(t, r3.Vec{X: 1, Y: 0.5}, got)
	assert.Equal(t, got, s.Position(1, d))
	assert.Equal(t, r3.Vec{}, s.Position(0, d))

	assert.Panics(t, func() { s.SetPosition(2, d, r3.Vec{}) })
	assert.Panics(t, func() { s.SetPosition(0, 5, r3.Vec{}) })
}

func TestPositionsIsCopy(t *testing.T) {
	s := New()
	d := s.AddDomain(nil, []r3.Vec{{X: 1}})
	pos := s.Positions(d)
	pos[0] = r3.Vec{X: 42}
	assert.Equal(t, r3.Vec{X: 1}, s.Position(0, d))
}

func TestShapeVector(t *testing.T) {
	s := New()
	d := s.AddDomain(nil, []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}})
	v := s.ShapeVector(d)
	require.Equal(t, 6, v.Len())
	for i := 0; i < 6; i++ {
		assert.Equal(t, float64(i+1), v.AtVec(i))
	}
}

func TestRandPop(t *testing.T) {
	low := r3.Vec{X: -1, Y: 0, Z: 10}
	up := r3.Vec{X: 1, Y: 2, Z: 20}
	points := RandPop(500, low, up, rand.New(rand.NewSource(7)))
	require.Len(t, points, 500)
	for _, p := range points {
		assert.True(t, p.X >= low.X && p.X <= up.X, "x out of bounds: %v", p)
		assert.True(t, p.Y >= low.Y && p.Y <= up.Y, "y out of bounds: %v", p)
		assert.True(t, p.Z >= low.Z && p.Z <= up.Z, "z out of bounds: %v", p)
	}

	// same default seed, same points
	assert.Equal(t, RandPop(3, low, up, nil), RandPop(3, low, up, nil))
}

func TestConcurrentReadWrite(t *testing.T) {
	s := New()
	d := s.AddDomain(&domain.Sphere{Radius: 1}, RandPop(64, r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 1, Y: 1, Z: 1}, nil))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < s.NumParticles(d); i++ {
				if w%2 == 0 {
					s.SetPosition(i, d, r3.Scale(2, s.Position(i, d)))
				} else {
					_ = s.ShapeVector(d)
				}
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < s.NumParticles(d); i++ {
		assert.InDelta(t, 1, r3.Norm(s.Position(i, d)), 1e-12)
	}
}
