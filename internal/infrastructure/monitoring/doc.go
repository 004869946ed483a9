/*
Package monitoring provides Prometheus metrics for the watchdog.

# Metrics

  - plwatchdog_packet_loss_ratio: latest measured loss
  - plwatchdog_measurements_total{outcome}: normal or exceeded
  - plwatchdog_restart_scheduled_timestamp_seconds: pending restart, 0 if none
  - plwatchdog_schedule_cancellations_total
  - plwatchdog_restart_attempts_total{result}: success or failure
  - plwatchdog_restart_attempt_duration_seconds

Metrics live on their own registry, so several collectors can coexist in
one process (tests construct one per case).

# Usage

	metrics := monitoring.NewMetrics()
	metrics.RecordMeasurement(0.02, false)

	timer := monitoring.NewTimer(metrics)
	// ... perform restart attempt ...
	timer.Stop(monitoring.ResultSuccess)

# Metrics Endpoint

When PLWD_METRICS_ADDR is set, a small gin listener serves /metrics and
/healthz until the daemon shuts down:

	srv := monitoring.NewServer(":9107", metrics, logger)
	go srv.Run(ctx)
*/
package monitoring
