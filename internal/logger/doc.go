// Package logger provides a small leveled, thread-safe logger.
//
// Every line carries a timestamp, the level and an optional component tag:
//
//	[2006-01-02 15:04:05.000] [WARN] [worker-2] task 17 panicked: boom
//
// # Basic Usage
//
//	logger.Info("", "engine ready")
//	logger.Warn("pool", "dispatch failed: %v", err)
//
// A Scoped logger pins the component so callers do not repeat it:
//
//	log := logger.Default.With("engine")
//	log.Debug("job %s started", id)
//
// # Levels
//
// Messages below the configured level are dropped. ParseLevel converts the
// names used in configuration files ("debug", "info", "warn", "error").
package logger
