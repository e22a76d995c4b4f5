package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	recommendationRequests *prometheus.CounterVec
	recommendationLatency  prometheus.Histogram
	sensoryFallbacks       *prometheus.CounterVec
	showIngestion          *prometheus.CounterVec
	healthCheckStatus      *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer, logger *logrus.Logger) *Metrics {
	m := &Metrics{}

	m.recommendationRequests = registerCollector(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_requests_total",
		Help: "Recommendation requests served, by strategy",
	}, []string{"strategy"}))

	m.recommendationLatency = registerCollector(reg, logger, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_latency_seconds",
		Help:    "Time spent producing recommendations",
		Buckets: prometheus.DefBuckets,
	}))

	m.sensoryFallbacks = registerCollector(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensory_fallback_total",
		Help: "Sensory metric values that fell back to Moderate, by field",
	}, []string{"field"}))

	m.showIngestion = registerCollector(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "show_ingestion_total",
		Help: "Show import records processed, by result",
	}, []string{"result"}))

	m.healthCheckStatus = registerCollector(reg, logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"}))

	return m
}

// registerCollector registers c, returning the already registered collector
// when one with the same descriptor exists.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, logger *logrus.Logger, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}

func (m *Metrics) ObserveRecommendation(strategy string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recommendationRequests.WithLabelValues(strategy).Inc()
	m.recommendationLatency.Observe(elapsed.Seconds())
}

// Unrecognized counts a sensory fallback. Metrics satisfies
// sensory.FallbackSink.
func (m *Metrics) Unrecognized(field, _ string) {
	if m == nil {
		return
	}
	m.sensoryFallbacks.WithLabelValues(field).Inc()
}

func (m *Metrics) RecordIngestion(result string) {
	if m == nil {
		return
	}
	m.showIngestion.WithLabelValues(result).Inc()
}

func (m *Metrics) SetHealth(service string, healthy bool) {
	if m == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.healthCheckStatus.WithLabelValues(service).Set(value)
}
