// Package qerrors provides structured, categorized errors for the query
// pipeline, with automatic stack capture, error wrapping, and retryability
// detection — the same shape the rest of the module's ambient stack
// expects from an error package, specialized to the pipeline's six error
// kinds.
package qerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Type categorizes a pipeline error for handling strategy, monitoring,
// and the driver's retry logic.
type Type string

const (
	// TypeInvalidUserArgument marks a caller-supplied clause argument or
	// read option that is structurally invalid (wrong root-node kind,
	// out-of-range row/date bounds, unknown aggregator name).
	TypeInvalidUserArgument Type = "invalid_user_argument"
	// TypeSchemaError marks a schema inference or reconciliation failure
	// (join_schemas on incompatible types, modify_schema producing an
	// inconsistent descriptor).
	TypeSchemaError Type = "schema_error"
	// TypeMissingColumn marks a reference to a column absent from the
	// input schema when dynamic_schema degradation does not apply.
	TypeMissingColumn Type = "missing_column"
	// TypeStorageError marks a failure from the storage collaborator
	// (fetch/write/list/delete/exists); the only retryable category.
	TypeStorageError Type = "storage_error"
	// TypeAssertionFailure marks an internal invariant violation: a
	// clause invalid as first being scheduled first, join_schemas called
	// on a single-input clause, a stale or unknown entity id.
	TypeAssertionFailure Type = "assertion_failure"
	// TypeCancelled marks a run stopped by its cancellation token.
	TypeCancelled Type = "cancelled"
)

// Error is the structured error type every package in this module
// returns instead of a bare error string.
type Error struct {
	Type    Type
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is one frame of the call stack captured at error creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a key-value detail, chainable at the call site.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an Error of the given type, capturing the call stack.
func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message, Stack: captureStack(2)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(t Type, format string, args ...interface{}) *Error {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap preserves err as Cause, reusing its stack if err is already a
// *Error so a long wrap chain doesn't blur the original failure site.
func Wrap(err error, t Type, message string) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Type: t, Message: message, Cause: err, Stack: existing.Stack}
	}
	return &Error{Type: t, Message: message, Cause: err, Stack: captureStack(2)}
}

// IsRetryable reports whether err's category is safe to retry with
// backoff. Only storage errors are: every other category reflects either
// a bad request or an internal invariant violation that retrying cannot
// fix.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == TypeStorageError
}

// IsType reports whether err is a *Error of the given type.
func IsType(err error, t Type) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == t
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)
	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		frames = append(frames, StackFrame{Function: fn.Name(), File: file, Line: line})
	}
	return frames
}
