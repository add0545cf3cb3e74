package errors

import (
	stderrors "errors"
	"fmt"

	"abtest/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code of an inner
// AppError is kept; otherwise the code is derived from the domain error kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    Classify(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise the code of
// its domain error kind
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return Classify(err)
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeIOError           = "IO_ERROR"
	CodeParseError        = "PARSE_ERROR"
	CodeSchemaError       = "SCHEMA_ERROR"
	CodePrecondition      = "PRECONDITION_FAILED"
	CodeConvergenceFailed = "CONVERGENCE_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Classify maps a domain error chain onto an error code
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsIOError(err):
		return CodeIOError
	case core.IsParseError(err):
		return CodeParseError
	case core.IsSchemaError(err):
		return CodeSchemaError
	case core.IsPreconditionError(err):
		return CodePrecondition
	case core.IsConvergenceError(err):
		return CodeConvergenceFailed
	default:
		return CodeInternalError
	}
}

// ExitCode maps an error onto a process exit status for the CLI
func ExitCode(err error) int {
	switch GetCode(err) {
	case "":
		return 0
	case CodeConfigInvalid, CodeInvalidInput:
		return 2
	case CodeIOError, CodeParseError:
		return 3
	case CodeSchemaError:
		return 4
	case CodePrecondition:
		return 5
	case CodeConvergenceFailed:
		return 6
	default:
		return 1
	}
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
