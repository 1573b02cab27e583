package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heroesdelapatria/portal/core/recommend"
)

const namespace = "portal_ml"

// PrometheusRecorder exports recommendation and API metrics on its own registry.
type PrometheusRecorder struct {
	reg *prometheus.Registry

	recommendations    *prometheus.CounterVec
	recommendationTime *prometheus.HistogramVec
	interactions       *prometheus.CounterVec
	modelVersion       prometheus.Gauge
	cacheSize          prometheus.Gauge

	apiRequests        *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
}

var _ recommend.Recorder = (*PrometheusRecorder)(nil)

func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		reg: reg,
		recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Total number of recommendation replies",
			},
			[]string{"algorithm", "source"},
		),
		recommendationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recommendation_duration_seconds",
				Help:      "Recommendation pipeline duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"algorithm"},
		),
		interactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interactions_total",
				Help:      "Total number of recorded interactions",
			},
			[]string{"type"},
		),
		modelVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_version",
				Help:      "Current model version",
			},
		),
		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Current number of cached recommendation results",
			},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		apiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "endpoint"},
		),
	}
}

func (r *PrometheusRecorder) RecommendationServed(algorithm string, fromCache bool, elapsed time.Duration) {
	source := "computed"
	if fromCache {
		source = "cache"
	}
	r.recommendations.WithLabelValues(algorithm, source).Inc()
	if !fromCache {
		r.recommendationTime.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	}
}

func (r *PrometheusRecorder) InteractionRecorded(interactionType string) {
	r.interactions.WithLabelValues(interactionType).Inc()
}

func (r *PrometheusRecorder) ModelTrained(version int) {
	r.modelVersion.Set(float64(version))
}

func (r *PrometheusRecorder) CacheSize(n int) {
	r.cacheSize.Set(float64(n))
}

// RecordAPIRequest records one served request. endpoint is the route path, not the raw URL.
func (r *PrometheusRecorder) RecordAPIRequest(method, endpoint string, status int, elapsed time.Duration) {
	r.apiRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	r.apiRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
