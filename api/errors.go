// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for numapool.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument     = fmt.Errorf("invalid argument")
	ErrPoolClosed          = fmt.Errorf("pool is closed")
	ErrQueueFull           = fmt.Errorf("task queue is full")
	ErrLocalityUnavailable = fmt.Errorf("locality services unavailable")
	ErrNotSupported        = fmt.Errorf("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeClosed
	ErrCodeUnavailable
	ErrCodeNotSupported
	ErrCodeInternal
)

// Error represents a structured error with code and context.
// It unwraps to the sentinel matching its code, so errors.Is keeps working.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap maps the code back onto the package sentinels.
func (e *Error) Unwrap() error {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeResourceExhausted:
		return ErrQueueFull
	case ErrCodeClosed:
		return ErrPoolClosed
	case ErrCodeUnavailable:
		return ErrLocalityUnavailable
	case ErrCodeNotSupported:
		return ErrNotSupported
	}
	return nil
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
