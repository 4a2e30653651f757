package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes carried by AppError.
const (
	CodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeWriteFailed       = "WRITE_FAILED"
	CodeRosterLookup      = "ROSTER_LOOKUP_FAILED"
	CodeConfig            = "CONFIG_ERROR"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
	ErrWriteFailed       = errors.New("write failed")
	ErrDatabase          = errors.New("database error")
	ErrValidation        = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// EngineUnavailable aborts a run before any page is processed.
func EngineUnavailable(cause error) *AppError {
	return NewAppError(CodeEngineUnavailable, "ocr engine is not installed or misconfigured", errors.Join(ErrEngineUnavailable, cause))
}

// InvalidInput rejects a malformed source document.
func InvalidInput(message string, cause error) *AppError {
	if cause == nil {
		return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
	}
	return NewAppError(CodeInvalidInput, message, errors.Join(ErrInvalidInput, cause))
}

// WriteFailed records a per-group filesystem failure.
func WriteFailed(message string, cause error) *AppError {
	return NewAppError(CodeWriteFailed, message, errors.Join(ErrWriteFailed, cause))
}

// RosterLookupFailed marks a group whose roster query could not run.
func RosterLookupFailed(run string, cause error) *AppError {
	return NewAppError(CodeRosterLookup, fmt.Sprintf("roster lookup for %s", run), errors.Join(ErrDatabase, cause))
}

// IsFatal reports whether err must abort a whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEngineUnavailable) || errors.Is(err, ErrInvalidInput)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps an application error onto a gRPC status.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrEngineUnavailable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrDatabase):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
