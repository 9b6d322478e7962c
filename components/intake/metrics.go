package intake

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formwizard/pkg/submit"
)

const _metricsNamespace = "formwizard"

// Metrics records submission outcomes and the number of live sessions.
// A nil *Metrics records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	sessions    prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Collectors already registered
// under the same name are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: _metricsNamespace,
		Name:      "submissions_total",
		Help:      "Submission attempts by form and outcome.",
	}, []string{"form", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: _metricsNamespace,
		Name:      "submission_duration_seconds",
		Help:      "Time from validation to a terminal outcome.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"form", "outcome"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: _metricsNamespace,
		Name:      "sessions_active",
		Help:      "Server-held wizard sessions.",
	})

	m := &Metrics{}
	var err error
	if m.submissions, err = register(reg, submissions); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if m.sessions, err = register[prometheus.Gauge](reg, sessions); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// Observer returns a pipeline observer counting terminal outcomes.
func (m *Metrics) Observer() submit.Observer {
	return func(event submit.Event) {
		if m == nil {
			return
		}
		switch event.To {
		case submit.StateRejected, submit.StateSucceeded, submit.StateFailed:
			outcome := string(event.To)
			m.submissions.WithLabelValues(event.Form, outcome).Inc()
			m.duration.WithLabelValues(event.Form, outcome).Observe(event.Duration.Seconds())
		}
	}
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
