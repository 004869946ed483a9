package watchdog

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/plwatchdog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plwatchdog/internal/measure"
)

// Restarter restarts the router, retrying internally.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Clock abstracts wall time for the run loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config holds the run loop settings.
type Config struct {
	Policy

	PingTarget          string
	MeasurementDuration time.Duration
	BetweenMeasurements time.Duration
	DelayAfterRestart   time.Duration
}

// Watchdog measures packet loss and restarts the router when it stays high.
// It is single-flight: a measurement and a restart never overlap.
type Watchdog struct {
	config    Config
	measurer  measure.Measurer
	restarter Restarter
	clock     Clock
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	state State
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(w *Watchdog) { w.clock = c }
}

// WithMetrics publishes measurements and schedule changes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(w *Watchdog) { w.metrics = m }
}

// New creates a watchdog.
func New(config Config, measurer measure.Measurer, restarter Restarter, logger *zap.Logger, opts ...Option) *Watchdog {
	w := &Watchdog{
		config:    config,
		measurer:  measurer,
		restarter: restarter,
		clock:     realClock{},
		logger:    logger.Named("watchdog"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current scheduling state.
func (w *Watchdog) State() State {
	return w.state
}

// Run loops until ctx is done and then returns ctx.Err().
func (w *Watchdog) Run(ctx context.Context) error {
	for {
		wake, err := w.step(ctx)
		if err != nil {
			return err
		}
		if err := w.sleepUntil(ctx, wake); err != nil {
			return err
		}
	}
}

// step runs one cycle and returns when the next one should start.
func (w *Watchdog) step(ctx context.Context) (time.Time, error) {
	if w.state.Due(w.clock.Now()) {
		return w.restart(ctx)
	}

	w.measure(ctx)
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	return NextWake(w.clock.Now(), w.state, w.config.BetweenMeasurements), nil
}

func (w *Watchdog) restart(ctx context.Context) (time.Time, error) {
	w.logger.Info("Restarting router now!", zap.Time("scheduled_at", w.state.ScheduledAt))

	if err := w.restarter.Restart(ctx); err != nil {
		if ctx.Err() != nil {
			return time.Time{}, ctx.Err()
		}
		// The schedule stays due, so the restart is retried on the next wake.
		w.logger.Error("Router restart failed, keeping the pending restart",
			zap.Time("scheduled_at", w.state.ScheduledAt),
			zap.Duration("retry_in", w.config.BetweenMeasurements),
			zap.Error(err))
		return w.clock.Now().Add(w.config.BetweenMeasurements), nil
	}

	w.state = State{}
	w.publishSchedule()
	w.logger.Info("Waiting before resuming measurements...",
		zap.Duration("delay", w.config.DelayAfterRestart))
	return w.clock.Now().Add(w.config.DelayAfterRestart), nil
}

func (w *Watchdog) measure(ctx context.Context) {
	w.logger.Info("Starting next measurement...",
		zap.String("target", w.config.PingTarget),
		zap.Duration("duration", w.config.MeasurementDuration))

	loss, err := w.measurer.Measure(ctx, w.config.PingTarget, w.config.MeasurementDuration)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Measurement failed, skipping cycle", zap.Error(err))
		}
		return
	}

	next, transition := w.config.Observe(w.state, loss, w.clock.Now())
	w.state = next

	if w.metrics != nil {
		w.metrics.RecordMeasurement(loss, transition == Scheduled)
	}

	percent := int(math.Round(loss * 100))
	switch transition {
	case Scheduled:
		w.logger.Info("Measured a too high packet loss, scheduling restart",
			zap.Int("percent", percent),
			zap.Time("scheduled_at", next.ScheduledAt))
		w.publishSchedule()
	case Canceled:
		w.logger.Info("Normal measurements in a row, canceling pending restart",
			zap.Int("count", next.NormalCount))
		if w.metrics != nil {
			w.metrics.IncCancellations()
		}
		w.publishSchedule()
	default:
		w.logger.Debug("Measured a normal packet loss",
			zap.Int("percent", percent),
			zap.Int("normal_count", next.NormalCount))
	}
}

func (w *Watchdog) publishSchedule() {
	if w.metrics != nil {
		w.metrics.SetSchedule(w.state.ScheduledAt)
	}
}

// sleepUntil sleeps until wake, re-reading the clock after every wake-up so
// that coarse or early timers never end the wait too soon.
func (w *Watchdog) sleepUntil(ctx context.Context, wake time.Time) error {
	for {
		d := wake.Sub(w.clock.Now())
		if d <= 0 {
			return nil
		}
		w.logger.Debug("Sleeping", zap.Duration("duration", d))
		if err := w.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}
}
