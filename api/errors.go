// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-bench.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the servers.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotSupported        = errors.New("operation not supported")
	ErrSubmissionQueueFull = errors.New("submission queue full")
	ErrBusy                = errors.New("submission backlog over limit")
	ErrTableFull           = errors.New("connection table full")
	ErrUnknownToken        = errors.New("unknown connection token")
	ErrBufferNotLeased     = errors.New("buffer not leased")
	ErrBufferAlreadyLeased = errors.New("buffer already leased")
	ErrSlotNotInFlight     = errors.New("accept slot not in flight")
	ErrPartialWrite        = errors.New("partial write of fixed response")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeSetup
	ErrCodeInternal
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeNotSupported:
		return "not_supported"
	case ErrCodeSetup:
		return "setup"
	case ErrCodeInternal:
		return "internal"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Internal builds an internal-consistency violation wrapping cause.
func Internal(message string, cause error) *Error {
	e := NewError(ErrCodeInternal, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsInternal reports whether err carries an internal-consistency violation.
func IsInternal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeInternal
}
