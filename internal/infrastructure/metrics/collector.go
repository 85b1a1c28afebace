package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

const namespace = "bandwidth_hero"

// Collector is an implementation of port.MetricsRecorder backed by a
// Prometheus registry
type Collector struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     *prometheus.CounterVec
	ratio     prometheus.Histogram
	redirects prometheus.Histogram
}

// NewCollector creates a new Collector. A nil registry gets a fresh one
// with the Go and process collectors registered.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by settlement and failure reason.",
		}, []string{"outcome", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request arrival to settlement.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes of compressed responses by kind (original, compressed, saved).",
		}, []string{"kind"}),
		ratio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Compressed size divided by original size.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5},
		}),
		redirects: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "origin_redirects",
			Help:      "Origin redirects followed per request.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
	}

	registry.MustRegister(c.requests, c.duration, c.bytes, c.ratio, c.redirects)
	return c
}

// RecordOutcome implements port.MetricsRecorder
func (c *Collector) RecordOutcome(outcome string, reason model.ErrorKind, duration time.Duration) {
	c.requests.WithLabelValues(outcome, string(reason)).Inc()
	c.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordTransfer implements port.MetricsRecorder
func (c *Collector) RecordTransfer(metrics model.TransferMetrics) {
	c.bytes.WithLabelValues("original").Add(float64(metrics.OriginalSize))
	c.bytes.WithLabelValues("compressed").Add(float64(metrics.CompressedSize))
	c.bytes.WithLabelValues("saved").Add(float64(metrics.BytesSaved()))
	if metrics.OriginalSize > 0 {
		c.ratio.Observe(float64(metrics.CompressedSize) / float64(metrics.OriginalSize))
	}
}

// RecordRedirects implements port.MetricsRecorder
func (c *Collector) RecordRedirects(hops uint) {
	c.redirects.Observe(float64(hops))
}

// Handler returns the Prometheus exposition endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Ensure Collector implements port.MetricsRecorder
var _ port.MetricsRecorder = (*Collector)(nil)
