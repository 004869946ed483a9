// Package logging provides structured logging using uber/zap.
//
// Output is human-readable console lines with ISO8601 timestamps:
//   - Debug, Info, Warn: standard output
//   - Error and above: standard error
//
// Debug carries the per-cycle verbose lines (normal measurement values,
// sleep durations) and is enabled by the -v flag.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Starting next measurement", zap.String("target", "1.1.1.1"))
//	logger.Error("Could not restart router", zap.Error(err))
package logging
