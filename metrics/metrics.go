// Package metrics exports optimizer progress to Prometheus.
package metrics

import (
	"net/http"

	"github.com/daniel-perry/shapeworks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shapeworks"

var termLabels = [shapeworks.NumTerms]string{"primary", "secondary", "correction"}

// Recorder publishes the statistics of every iteration.  It satisfies
// solver.Observer.
type Recorder struct {
	reg *prometheus.Registry

	GradMag     *prometheus.GaugeVec
	Energy      *prometheus.GaugeVec
	TotalEnergy prometheus.Gauge
	Iteration   prometheus.Gauge
	Evaluations prometheus.Counter
}

// NewRecorder registers the optimizer metrics on a private registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		GradMag: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_gradient_magnitude",
			Help:      "Mean gradient magnitude of each term over the last iteration.",
		}, []string{"term"}),
		Energy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_energy",
			Help:      "Mean energy of each term over the last iteration.",
		}, []string{"term"}),
		TotalEnergy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_energy",
			Help:      "Total energy of the particle system at the start of the last iteration.",
		}),
		Iteration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration",
			Help:      "Number of the last finished iteration.",
		}),
		Evaluations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Particle evaluations performed by the combined vector function.",
		}),
	}
}

func (r *Recorder) Observe(iter int, energy float64, st shapeworks.Stats) {
	for i, name := range termLabels {
		r.GradMag.WithLabelValues(name).Set(st.GradMag[i])
		r.Energy.WithLabelValues(name).Set(st.Energy[i])
	}
	r.TotalEnergy.Set(energy)
	r.Iteration.Set(float64(iter))
	r.Evaluations.Add(float64(st.Evaluations))
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
