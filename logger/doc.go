// Package logger provides structured logging for serverkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with map fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("bootstrap")
//	log.Info("service started", logger.Fields("service", "persister"))
package logger
