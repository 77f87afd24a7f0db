// Package apperr defines the coded error type used across the module.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeInvalidArchive        = "INVALID_ARCHIVE"
	CodeOptionalMemberCorrupt = "OPTIONAL_MEMBER_CORRUPT"
	CodeAutoSaveUnavailable   = "AUTOSAVE_UNAVAILABLE"
	CodePersistFailure        = "PERSIST_FAILURE"
	CodeUnsupported           = "UNSUPPORTED"
	CodeNotFound              = "NOT_FOUND"
	CodeConfig                = "CONFIG_ERROR"
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

// Is matches any AppError carrying the same code, so errors.Is works
// against the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidArchive        = &AppError{Code: CodeInvalidArchive, Message: "invalid archive"}
	ErrOptionalMemberCorrupt = &AppError{Code: CodeOptionalMemberCorrupt, Message: "optional member corrupt"}
	ErrAutoSaveUnavailable   = &AppError{Code: CodeAutoSaveUnavailable, Message: "auto-save data unavailable"}
	ErrPersistFailure        = &AppError{Code: CodePersistFailure, Message: "save failed"}
	ErrUnsupported           = &AppError{Code: CodeUnsupported, Message: "operation not supported"}
	ErrNotFound              = &AppError{Code: CodeNotFound, Message: "not found"}
)

// New builds an AppError.
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrap prefixes err with message, keeping it matchable.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
