package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/plwatchdog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plwatchdog/internal/router/sandbox"
)

// Config defines how to reach and authenticate against the router.
type Config struct {
	Host     string
	Password string
	// Attempts is the number of immediate tries per Restart call.
	Attempts int
	Timeout  time.Duration
	RPS      float64
	Sandbox  sandbox.Config
}

// Restarter restarts the router through its web interface.
type Restarter struct {
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	// attempt defaults to Attempt; tests replace it.
	attempt func(ctx context.Context) (*Result, error)
}

// NewRestarter creates a restarter. metrics may be nil.
func NewRestarter(config Config, logger *zap.Logger, metrics *monitoring.Metrics) *Restarter {
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	r := &Restarter{
		config:  config,
		logger:  logger.Named("router"),
		metrics: metrics,
	}
	r.attempt = r.Attempt
	return r
}

// Restart tries up to Config.Attempts times. After the last failure it
// returns an error wrapping ErrGaveUp and the last attempt's error.
func (r *Restarter) Restart(ctx context.Context) error {
	var lastErr error
	for i := 1; i <= r.config.Attempts; i++ {
		r.logger.Info("Trying to restart router...", zap.Int("try", i))

		var timer *monitoring.Timer
		if r.metrics != nil {
			timer = monitoring.NewTimer(r.metrics)
		}

		res, err := r.attempt(ctx)
		if err == nil {
			if timer != nil {
				timer.Stop(monitoring.ResultSuccess)
			}
			r.logger.Info("No errors during router restart. Assuming restart was successful.",
				zap.Int("status", res.Status),
				zap.String("body", res.Body))
			return nil
		}

		if timer != nil {
			timer.Stop(monitoring.ResultFailure)
		}
		lastErr = err
		r.logger.Error("Could not restart router!",
			zap.Int("try", i),
			zap.String("kind", Kind(err)),
			zap.Error(err))

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	r.logger.Error("Giving up on retrying!", zap.Int("attempts", r.config.Attempts))
	return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, r.config.Attempts, lastErr)
}
