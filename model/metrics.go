package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type providerMetrics struct {
	invocations *prometheus.CounterVec
	retries     prometheus.Counter
	duration    prometheus.Histogram
}

func newProviderMetrics(registry *prometheus.Registry, provider string) *providerMetrics {
	labels := prometheus.Labels{"provider": provider}

	m := &providerMetrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "model_invocations_total",
			Help:        "Model invocations by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "model_invocation_retries_total",
			Help:        "Retried model invocation attempts.",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "model_invocation_duration_seconds",
			Help:        "Wall-clock duration of model invocations.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}

	if registry != nil {
		registry.MustRegister(m.invocations, m.retries, m.duration)
	}

	return m
}

func (m *providerMetrics) observe(start time.Time, err error) {
	m.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.invocations.WithLabelValues("error").Inc()
		return
	}
	m.invocations.WithLabelValues("success").Inc()
}
