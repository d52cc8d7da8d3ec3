package qerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapturesStack(t *testing.T) {
	err := New(TypeInvalidUserArgument, "bad root node")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Error(), "invalid_user_argument")
	assert.Contains(t, err.Error(), "bad root node")
}

func TestWithDetail(t *testing.T) {
	err := New(TypeSchemaError, "mismatch").WithDetail("column", "x")
	assert.Equal(t, "x", err.Details["column"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, TypeStorageError, "unused"))
}

func TestWrapPreservesStackOfExistingError(t *testing.T) {
	inner := New(TypeMissingColumn, "no such column")
	outer := Wrap(inner, TypeAssertionFailure, "inference failed")
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Same(t, inner, errorsAsError(t, outer.Cause))
}

func errorsAsError(t *testing.T, err error) *Error {
	var e *Error
	require.True(t, errors.As(err, &e))
	return e
}

func TestIsRetryableOnlyStorage(t *testing.T) {
	assert.True(t, IsRetryable(New(TypeStorageError, "timeout")))
	assert.False(t, IsRetryable(New(TypeAssertionFailure, "bug")))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestIsType(t *testing.T) {
	err := New(TypeCancelled, "stopped")
	assert.True(t, IsType(err, TypeCancelled))
	assert.False(t, IsType(err, TypeStorageError))
}
