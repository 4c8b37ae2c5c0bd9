// Package logging provides structured logging with per-module log levels.
//
// Initialize once at startup, then obtain module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"process": "debug",
//			"probe":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("harness").With("app", app, "mode", mode)
//	logger.Info("Case started")
//
// Loggers obtained before Initialize are kept and have their level updated
// in place, so package-level loggers are safe.
//
// With Journal enabled and journald reachable, records are also sent to the
// systemd journal under the "startstop" identifier:
//
//	journalctl -t startstop MODULE=harness
package logging
