package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/plwatchdog/internal/infrastructure/config"
	"github.com/GriffinCanCode/plwatchdog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plwatchdog/internal/logging"
	"github.com/GriffinCanCode/plwatchdog/internal/measure"
	"github.com/GriffinCanCode/plwatchdog/internal/router"
	"github.com/GriffinCanCode/plwatchdog/internal/router/sandbox"
	"github.com/GriffinCanCode/plwatchdog/internal/watchdog"
)

var cli struct {
	Verbose bool `short:"v" help:"Log every measurement and sleep"`
}

func main() {
	os.Exit(run())
}

func run() int {
	if runtime.GOOS != "linux" {
		fmt.Println("Only Linux is supported!")
		return 1
	}

	kong.Parse(&cli,
		kong.Name("plwatchdog"),
		kong.Description("Measures packet loss and restarts a Vodafone Station when it stays too high.\nConfiguration is read from the environment."),
		kong.UsageOnError(),
		kong.Help(func(options kong.HelpOptions, ctx *kong.Context) error {
			if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
				return err
			}
			fmt.Fprintln(ctx.Stdout, "\nEnvironment:")
			return config.Usage(ctx.Stdout)
		}),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\nRun with --help for the list of variables.\n", err)
		return 1
	}
	if cli.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("Starting packet loss watchdog",
		zap.String("router_ip", cfg.Router.IP),
		zap.String("router_password", "<redacted>"),
		zap.String("ping_target", cfg.Watch.PingTarget),
		zap.String("ping_interval", cfg.Watch.PingInterval),
		zap.Stringer("between_measurements", cfg.Watch.BetweenMeasurements),
		zap.Stringer("measurement_duration", cfg.Watch.MeasurementDuration),
		zap.Float64("too_high_threshold", cfg.Watch.TooHighThreshold),
		zap.Stringer("restart_time", cfg.Watch.RestartTime),
		zap.Int("cancel_after_normal", cfg.Watch.CancelAfterNormal),
		zap.Stringer("delay_after_restart", cfg.Watch.DelayAfterRestart),
		zap.Int("restart_attempts", cfg.Router.Attempts),
		zap.Stringer("http_timeout", cfg.Router.Timeout),
		zap.Float64("router_rps", cfg.Router.RPS),
		zap.String("metrics_addr", cfg.Metrics.Addr),
		zap.Bool("verbose", cli.Verbose))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	if cfg.Metrics.Addr != "" {
		srv := monitoring.NewServer(cfg.Metrics.Addr, metrics, logger.Named("metrics"))
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Metrics listener failed", zap.Error(err))
			}
		}()
	}

	restarter := router.NewRestarter(router.Config{
		Host:     cfg.Router.IP,
		Password: cfg.Router.Password,
		Attempts: cfg.Router.Attempts,
		Timeout:  cfg.Router.Timeout.Duration(),
		RPS:      cfg.Router.RPS,
		Sandbox:  sandbox.DefaultConfig(),
	}, logger, metrics)

	wd := watchdog.New(watchdog.Config{
		Policy: watchdog.Policy{
			Threshold:   cfg.Watch.TooHighThreshold,
			RestartTime: cfg.Watch.RestartTime,
			CancelAfter: cfg.Watch.CancelAfterNormal,
		},
		PingTarget:          cfg.Watch.PingTarget,
		MeasurementDuration: cfg.Watch.MeasurementDuration.Duration(),
		BetweenMeasurements: cfg.Watch.BetweenMeasurements.Duration(),
		DelayAfterRestart:   cfg.Watch.DelayAfterRestart.Duration(),
	}, measure.NewPing(cfg.Watch.PingInterval, logger), restarter, logger, watchdog.WithMetrics(metrics))

	if err := wd.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Watchdog stopped", zap.Error(err))
		return 1
	}
	logger.Info("Shutting down")
	return 0
}
