package scraper

import (
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	RecordsTotal     prometheus.Counter
	RetriesTotal     prometheus.Counter
	CooldownsTotal   *prometheus.CounterVec
	PagesTotal       *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	BatchesCompleted prometheus.Counter

	// RequestRate tracks requests issued over the last minute for progress logs.
	RequestRate *ratecounter.RateCounter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total listing requests issued, by response class.",
		},
		[]string{"class"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "Latency of listing requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_records_total",
			Help: "Total number of records appended to the output.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	cooldowns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_cooldowns_total",
			Help: "Long pauses taken after throttling signals, by reason.",
		},
		[]string{"reason"},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pages_total",
			Help: "Pages that reached a terminal result, by status.",
		},
		[]string{"status"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Total number of failed attempts by type.",
		},
		[]string{"error_type"},
	)
	batches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_batches_completed_total",
			Help: "Batches whose pages all reached a terminal result.",
		},
	)

	registry.MustRegister(requests, requestDuration, records, retries, cooldowns, pages, errorsTotal, batches)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		RecordsTotal:     records,
		RetriesTotal:     retries,
		CooldownsTotal:   cooldowns,
		PagesTotal:       pages,
		ErrorsTotal:      errorsTotal,
		BatchesCompleted: batches,
		RequestRate:      ratecounter.NewRateCounter(time.Minute),
	}
}

// IncRequest increments the requests counter for a response class.
func (m *Metrics) IncRequest(class string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(class).Inc()
	m.RequestRate.Incr(1)
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRecords increments the records counter.
func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncCooldown increments the cooldowns counter.
func (m *Metrics) IncCooldown(reason string) {
	if m == nil {
		return
	}
	m.CooldownsTotal.WithLabelValues(reason).Inc()
}

// IncPage increments the terminal pages counter.
func (m *Metrics) IncPage(status string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(status).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncBatch increments the completed batches counter.
func (m *Metrics) IncBatch() {
	if m == nil {
		return
	}
	m.BatchesCompleted.Inc()
}

// RequestsPerMinute returns the request rate over the last minute.
func (m *Metrics) RequestsPerMinute() int64 {
	if m == nil {
		return 0
	}
	return m.RequestRate.Rate()
}
