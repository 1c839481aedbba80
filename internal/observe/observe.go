// Package observe builds the logger and telemetry handles shared by the
// engine, and reports corpus and cache health.
//
// Logs go to stderr so stdout stays free for the MCP stdio channel. Traces
// and metrics use the global OpenTelemetry providers, which are no-ops
// until the embedding process installs an SDK.
package observe

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ScopePrefix prefixes every instrumentation scope name.
const ScopePrefix = "filingintel/"

// ParseLevel maps debug, info, warn or error to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// NewLogger builds a production JSON logger at level writing to stderr.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.With(zap.String("service", "filingintel")), nil
}

// Tracer returns the global tracer for a component.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(ScopePrefix + component)
}

// Meter returns the global meter for a component.
func Meter(component string) metric.Meter {
	return otel.Meter(ScopePrefix + component)
}
