// Package logging provides structured logging for SSC Monitor.
//
// It wraps log/slog so every component logs with the same handler,
// level and default attributes (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	sscLog := logger.Component("ssc")
//	sscLog.Info("subscribed", "device", "R1")
//
// Never log secrets such as the MQTT password or InfluxDB token.
package logging
