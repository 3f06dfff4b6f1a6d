// Package errors provides the unified error type and factory functions for
// deepdrugkit.  Every layer (preprocessing, datasets, models, evaluation,
// CLI) uses AppError as the single carrier for structured error information
// so that failure categories stay inspectable across package boundaries.
//
// The taxonomy has four groups, mirrored in codes.go:
//
//	CFG_*  configuration errors: unregistered transform pair, bad settings
//	MTH_*  unsupported-method errors: unknown fingerprint/split/model name
//	DAT_*  data-format errors: missing attribute, malformed raw value
//	RES_*  resource errors: missing file, unreadable structural file
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames
// above the caller, skipping captureStack itself and the factory function.
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the single structured error type used throughout deepdrugkit.
// It satisfies the standard error interface and supports Go 1.13+ wrapping,
// so errors.Is / errors.As / errors.Unwrap work across all layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeUnregisteredTransform,
//	    "no transform registered for smiles->spectrum")
//	return errors.Wrap(err, errors.ErrCodeFileNotFound, "open davis table")
type AppError struct {
	// Code is the typed error code identifying the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context (attribute names, file paths,
	// offending values) that aids debugging.
	Detail string

	// Cause is the underlying error, enabling errors.Is / errors.As
	// traversal of the full chain.
	Cause error

	// Stack is the formatted call stack captured at creation.  It is not
	// part of Error() output; structured loggers read it directly.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>", detail omitted when empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// Safe to call on a nil pointer.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf constructs a fresh AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline on a call result.  When err is
// already an *AppError and code is CodeUnknown, the original code is kept.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError in err's chain.
// Returns CodeOK for nil and CodeUnknown when no AppError is present.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// isGroup reports whether any AppError in the chain belongs to the group.
func isGroup(err error, group string) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code.group() == group {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsConfiguration reports whether err is a configuration error (CFG_*).
func IsConfiguration(err error) bool { return isGroup(err, "CFG") }

// IsUnsupportedMethod reports whether err is an unsupported-method error (MTH_*).
func IsUnsupportedMethod(err error) bool { return isGroup(err, "MTH") }

// IsDataFormat reports whether err is a data-format error (DAT_*).
func IsDataFormat(err error) bool { return isGroup(err, "DAT") }

// IsResource reports whether err is a resource error (RES_*).
func IsResource(err error) bool { return isGroup(err, "RES") }

// Configuration constructs a CFG-group AppError with ErrCodeInvalidConfig.
func Configuration(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidConfig, Message: message, Stack: captureStack(1)}
}

// UnsupportedMethod constructs an MTH-group AppError for an unknown name.
func UnsupportedMethod(code ErrorCode, name string) *AppError {
	return &AppError{
		Code:    code,
		Message: "unsupported method",
		Detail:  name,
		Stack:   captureStack(1),
	}
}

// DataFormat constructs a DAT-group AppError with ErrCodeMalformedRow.
func DataFormat(message string) *AppError {
	return &AppError{Code: ErrCodeMalformedRow, Message: message, Stack: captureStack(1)}
}

// Resource constructs a RES-group AppError wrapping an I/O failure.
func Resource(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause, Stack: captureStack(1)}
}

// Internal constructs a generic internal AppError.  Use only when no more
// specific code applies.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Stack: captureStack(1)}
}
