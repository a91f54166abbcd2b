package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/daniel-perry/shapeworks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()
	r.Observe(1, 12.5, shapeworks.Stats{
		Evaluations: 10,
		GradMag:     [shapeworks.NumTerms]float64{1, 2, 3},
		Energy:      [shapeworks.NumTerms]float64{4, 5, 6},
	})
	r.Observe(2, 11, shapeworks.Stats{
		Evaluations: 10,
		GradMag:     [shapeworks.NumTerms]float64{0.5, 2, 3},
		Energy:      [shapeworks.NumTerms]float64{4, 5, 6},
	})

	assert.Equal(t, 0.5, testutil.ToFloat64(r.GradMag.WithLabelValues("primary")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.GradMag.WithLabelValues("correction")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.Energy.WithLabelValues("secondary")))
	assert.Equal(t, 11.0, testutil.ToFloat64(r.TotalEnergy))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Iteration))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.Evaluations))
	assert.Equal(t, 3, testutil.CollectAndCount(r.GradMag))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.Observe(3, 1, shapeworks.Stats{Evaluations: 4})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"shapeworks_mean_gradient_magnitude",
		"shapeworks_mean_energy",
		"shapeworks_total_energy",
		"shapeworks_iteration 3",
		"shapeworks_evaluations_total 4",
	} {
		assert.True(t, strings.Contains(string(body), name), "missing %v", name)
	}
}
