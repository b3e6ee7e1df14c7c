// Package metrics exposes allocation and HTTP metrics to prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements registry.Observer
type Collector struct {
	gatherer prometheus.Gatherer

	allocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	used        prometheus.Gauge
	remaining   prometheus.Gauge
	requests    *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sft_allocations_total",
			Help: "Total number of SFT numbers issued",
		}, []string{"kind"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sft_allocation_failures_total",
			Help: "Total number of failed allocation attempts",
		}, []string{"reason"}),
		used: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sft_numbers_used",
			Help: "SFT numbers currently issued",
		}),
		remaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sft_numbers_remaining",
			Help: "SFT numbers still available",
		}),
		requests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sft_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (c *Collector) ObserveAllocation(kind string) {
	c.allocations.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveFailure(reason string) {
	c.failures.WithLabelValues(reason).Inc()
}

func (c *Collector) ObserveUsage(used, remaining int) {
	c.used.Set(float64(used))
	c.remaining.Set(float64(remaining))
}

// ObserveRequest records one served HTTP request
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the collected metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
