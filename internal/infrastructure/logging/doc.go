// Package logging provides structured logging for lumen.
//
// It wraps log/slog so every record carries the service name and version.
// Components receive a child logger tagged with their name:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("capture").Warn("frame cancelled", "reason", "temporary")
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
