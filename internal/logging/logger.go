// Package logging builds the zap loggers shared by both binaries.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names used across components.
const (
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldDocumentID = "document_id"
	FieldChunkIndex = "chunk_index"
	FieldJobID      = "job_id"
	FieldRequestID  = "request_id"
)

// New returns a JSON production logger, or a console logger at debug level
// when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// Component tags logger with a component name. A nil logger yields a no-op
// logger.
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(zap.String(FieldComponent, name))
}
