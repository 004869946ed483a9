package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Measurement outcomes.
const (
	OutcomeNormal   = "normal"
	OutcomeExceeded = "exceeded"
)

// Restart attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all Prometheus metrics of the daemon
type Metrics struct {
	Registry *prometheus.Registry

	// Measurement metrics
	PacketLoss   prometheus.Gauge
	Measurements *prometheus.CounterVec

	// Schedule metrics
	ScheduledAt   prometheus.Gauge
	Cancellations prometheus.Counter

	// Restart metrics
	RestartAttempts *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
}

// NewMetrics creates metrics registered on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		PacketLoss: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plwatchdog_packet_loss_ratio",
				Help: "Packet loss ratio of the latest measurement",
			},
		),
		Measurements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plwatchdog_measurements_total",
				Help: "Total number of packet loss measurements",
			},
			[]string{"outcome"},
		),

		ScheduledAt: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plwatchdog_restart_scheduled_timestamp_seconds",
				Help: "Unix time of the pending router restart, 0 if none",
			},
		),
		Cancellations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plwatchdog_schedule_cancellations_total",
				Help: "Pending restarts canceled after normal measurements",
			},
		),

		RestartAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plwatchdog_restart_attempts_total",
				Help: "Router restart attempts",
			},
			[]string{"result"},
		),
		AttemptDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plwatchdog_restart_attempt_duration_seconds",
				Help:    "Duration of a single router restart attempt",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}
}

// RecordMeasurement records a measured loss ratio
func (m *Metrics) RecordMeasurement(loss float64, exceeded bool) {
	m.PacketLoss.Set(loss)
	if exceeded {
		m.Measurements.WithLabelValues(OutcomeExceeded).Inc()
	} else {
		m.Measurements.WithLabelValues(OutcomeNormal).Inc()
	}
}

// SetSchedule publishes the pending restart, the zero time clears it
func (m *Metrics) SetSchedule(at time.Time) {
	if at.IsZero() {
		m.ScheduledAt.Set(0)
		return
	}
	m.ScheduledAt.Set(float64(at.Unix()))
}

// IncCancellations counts a canceled schedule
func (m *Metrics) IncCancellations() {
	m.Cancellations.Inc()
}

// Timer measures a restart attempt
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
	}
}

// Stop records the attempt duration and result
func (t *Timer) Stop(result string) {
	t.metrics.AttemptDuration.Observe(time.Since(t.start).Seconds())
	t.metrics.RestartAttempts.WithLabelValues(result).Inc()
}
