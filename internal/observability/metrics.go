package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "helpdesk_"

// Pass results.
const (
	PassCompleted = "completed"
	PassSkipped   = "skipped"
	PassFailed    = "failed"
)

// Metrics bundles the service's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec

	slaPasses        *prometheus.CounterVec
	slaPassDuration  prometheus.Histogram
	slaBreaches      prometheus.Counter
	slaWarnings      prometheus.Counter
	slaTimerFailures *prometheus.CounterVec

	notificationsEnqueued  *prometheus.CounterVec
	notificationsDelivered *prometheus.CounterVec
	notificationsFailed    *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route, method and status",
			},
			[]string{"path", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_errors_total",
				Help: "Total HTTP errors by route, method and error code",
			},
			[]string{"path", "method", "code"},
		),
		slaPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sla_passes_total",
				Help: "SLA evaluation passes by result",
			},
			[]string{"result"},
		),
		slaPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "sla_pass_duration_seconds",
			Help:    "SLA evaluation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		slaBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sla_breaches_seen_total",
			Help: "Breached active timers seen across passes",
		}),
		slaWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sla_warnings_sent_total",
			Help: "SLA warnings sent",
		}),
		slaTimerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sla_timer_failures_total",
				Help: "Timers that could not be evaluated by reason",
			},
			[]string{"reason"},
		),
		notificationsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_enqueued_total",
				Help: "Notification jobs enqueued by kind and result",
			},
			[]string{"kind", "result"},
		),
		notificationsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_delivered_total",
				Help: "Notifications delivered by kind and channel",
			},
			[]string{"kind", "channel"},
		),
		notificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_failed_total",
				Help: "Notification delivery failures by kind and channel",
			},
			[]string{"kind", "channel"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.requests,
			m.latency,
			m.errors,
			m.slaPasses,
			m.slaPassDuration,
			m.slaBreaches,
			m.slaWarnings,
			m.slaTimerFailures,
			m.notificationsEnqueued,
			m.notificationsDelivered,
			m.notificationsFailed,
		)
	}
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordSLAPass records one evaluation pass.
func (m *Metrics) RecordSLAPass(result string, duration time.Duration, breaches, warnings int) {
	if m == nil {
		return
	}
	m.slaPasses.WithLabelValues(result).Inc()
	if result == PassSkipped {
		return
	}
	m.slaPassDuration.Observe(duration.Seconds())
	m.slaBreaches.Add(float64(breaches))
	m.slaWarnings.Add(float64(warnings))
}

// RecordTimerFailure counts a timer skipped during a pass.
func (m *Metrics) RecordTimerFailure(reason string) {
	if m == nil {
		return
	}
	m.slaTimerFailures.WithLabelValues(reason).Inc()
}

// RecordEnqueue counts a notification push attempt.
func (m *Metrics) RecordEnqueue(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.notificationsEnqueued.WithLabelValues(kind, result).Inc()
}

// RecordDelivery counts a delivery outcome on one channel.
func (m *Metrics) RecordDelivery(kind, channel string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.notificationsDelivered.WithLabelValues(kind, channel).Inc()
		return
	}
	m.notificationsFailed.WithLabelValues(kind, channel).Inc()
}
