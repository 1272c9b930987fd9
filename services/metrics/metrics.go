// Package metrics exposes the admissions workflow to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/services/notify"
)

const namespace = "admissions"

type Metrics struct {
	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	verifications  *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	rollsAllocated *prometheus.CounterVec
	rollAllocation prometheus.Histogram
	slipFailures   prometheus.Counter

	notifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var (
	_ admission.Observer = (*Metrics)(nil)
	_ notify.Observer    = (*Metrics)(nil)
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),

		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "verifications_total",
			Help:      "Total number of successful verify operations, including no-op re-verifications.",
		}, []string{"class"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "rejections_total",
			Help:      "Total number of successful reject operations.",
		}, []string{"class"}),
		rollsAllocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roll_numbers",
			Name:      "allocated_total",
			Help:      "Total number of roll numbers issued.",
		}, []string{"class"}),
		rollAllocation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "roll_numbers",
			Name:      "allocation_duration_seconds",
			Help:      "Time spent waiting for and incrementing a roll number counter.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		slipFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roll_slips",
			Name:      "failures_total",
			Help:      "Total number of roll slips that could not be generated or stored.",
		}),

		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "events_total",
			Help:      "Total number of notification events, by outcome of queueing.",
		}, []string{"kind", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Total number of notification deliveries, by channel and success.",
		}, []string{"channel", "success"}),

		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs.",
		}, []string{"job", "success"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.verifications, m.rejections, m.rollsAllocated, m.rollAllocation, m.slipFailures,
		m.notifications, m.deliveries,
		m.jobRuns, m.jobDuration,
	)
	return m
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Verified(class admission.Class, allocated bool) {
	m.verifications.WithLabelValues(string(class)).Inc()
	if allocated {
		m.rollsAllocated.WithLabelValues(string(class)).Inc()
	}
}

func (m *Metrics) Rejected(class admission.Class) {
	m.rejections.WithLabelValues(string(class)).Inc()
}

func (m *Metrics) SlipFailed() {
	m.slipFailures.Inc()
}

func (m *Metrics) RollAllocation(d time.Duration) {
	m.rollAllocation.Observe(d.Seconds())
}

func (m *Metrics) NotificationQueued(kind admission.EventKind) {
	m.notifications.WithLabelValues(string(kind), "queued").Inc()
}

func (m *Metrics) NotificationDropped(kind admission.EventKind) {
	m.notifications.WithLabelValues(string(kind), "dropped").Inc()
}

func (m *Metrics) NotificationDelivered(channel string, ok bool) {
	m.deliveries.WithLabelValues(channel, strconv.FormatBool(ok)).Inc()
}

// RecordJob records a scheduled job run.
func (m *Metrics) RecordJob(job string, duration time.Duration, success bool) {
	if job == "" {
		job = "unknown"
	}
	m.jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RequestStarted tracks an in-flight request; call the returned func once it is served.
// route is the matched route pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) RequestStarted(method, route string) func(status int) {
	start := time.Now()
	m.httpInFlight.Inc()
	return func(status int) {
		m.httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		method = strings.ToUpper(method)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
