// Package telemetry provides the structured logging, tracing, and metrics
// collaborators the driver and every clause's process() lean on: none of
// it is load-bearing to correctness, but every operation the driver runs
// is visible through it in the order it actually executed.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StructuredLogger wraps a *zap.Logger scoped to one pipeline run, adding
// trace-context and per-operation helpers the driver and clauses use to
// log start/end/row-count at debug and errors at error level.
type StructuredLogger struct {
	logger *zap.Logger
	runID  string
}

// NewStructuredLogger builds a StructuredLogger tagging every line with
// runID, the identifier threaded through one pipeline execution.
func NewStructuredLogger(base *zap.Logger, runID string) *StructuredLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &StructuredLogger{
		logger: base.With(zap.String("run_id", runID)),
		runID:  runID,
	}
}

// WithContext attaches the active span's trace/span id to subsequent log
// lines, if ctx carries one.
func (sl *StructuredLogger) WithContext(ctx context.Context) *ContextLogger {
	fields := make([]zap.Field, 0, 2)
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		fields = append(fields,
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return &ContextLogger{logger: sl.logger.With(fields...)}
}

// WithOperation scopes a logger to one named operation (a clause's
// process() call, a storage fetch), recording its start time so
// LogComplete/LogError can report elapsed duration.
func (sl *StructuredLogger) WithOperation(operation string) *OperationLogger {
	return &OperationLogger{
		logger:    sl.logger.With(zap.String("operation", operation)),
		startTime: time.Now(),
	}
}

func (sl *StructuredLogger) Debug(msg string, fields ...zap.Field) { sl.logger.Debug(msg, fields...) }
func (sl *StructuredLogger) Info(msg string, fields ...zap.Field)  { sl.logger.Info(msg, fields...) }
func (sl *StructuredLogger) Warn(msg string, fields ...zap.Field)  { sl.logger.Warn(msg, fields...) }
func (sl *StructuredLogger) Error(msg string, fields ...zap.Field) { sl.logger.Error(msg, fields...) }

// ContextLogger is a StructuredLogger with a specific context's trace
// fields already attached.
type ContextLogger struct {
	logger *zap.Logger
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.logger.Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.logger.Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.logger.Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.logger.Error(msg, fields...) }

// OperationLogger tracks one named operation's lifetime for
// start/complete/error logging with elapsed duration attached.
type OperationLogger struct {
	logger    *zap.Logger
	startTime time.Time
}

func (ol *OperationLogger) LogStart(msg string, fields ...zap.Field) {
	ol.logger.Debug(msg, append(fields, zap.String("phase", "start"))...)
}

func (ol *OperationLogger) LogComplete(msg string, fields ...zap.Field) {
	all := append(fields,
		zap.String("phase", "complete"),
		zap.Duration("duration", time.Since(ol.startTime)),
	)
	ol.logger.Debug(msg, all...)
}

func (ol *OperationLogger) LogError(msg string, err error, fields ...zap.Field) {
	all := append(fields,
		zap.String("phase", "error"),
		zap.Duration("duration", time.Since(ol.startTime)),
		zap.Error(err),
	)
	ol.logger.Error(msg, all...)
}
