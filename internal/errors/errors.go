package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents the categories of per-item failures
type ErrorType string

const (
	ErrorTypeDecode         ErrorType = "decode"
	ErrorTypeBoundsNotFound ErrorType = "bounds_not_found"
	ErrorTypeAssetMissing   ErrorType = "asset_missing"
	ErrorTypeCanvas         ErrorType = "canvas"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeCancelled      ErrorType = "cancelled"
)

// AppError represents a structured error scoped to one batch item
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Item    string    `json:"item,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Item != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Type, e.Item)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithItem returns a copy of the error attributed to item
func (e *AppError) WithItem(item string) *AppError {
	c := *e
	c.Item = item
	return &c
}

// New creates an error of the given type
func New(t ErrorType, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, Cause: cause}
}

// NewDecodeError creates a new decode error
func NewDecodeError(message string, cause error) *AppError {
	return New(ErrorTypeDecode, message, cause)
}

// NewBoundsNotFoundError creates a new bounds error
func NewBoundsNotFoundError(message string, cause error) *AppError {
	return New(ErrorTypeBoundsNotFound, message, cause)
}

// NewAssetMissingError creates a new missing asset error
func NewAssetMissingError(message string, cause error) *AppError {
	return New(ErrorTypeAssetMissing, message, cause)
}

// NewCanvasError creates a new canvas error
func NewCanvasError(message string, cause error) *AppError {
	return New(ErrorTypeCanvas, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return New(ErrorTypeValidation, message, cause)
}

// FromContext maps a context error to a timeout or cancelled error.
// It returns nil for any other error.
func FromContext(err error) *AppError {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return New(ErrorTypeTimeout, "item timed out", err)
	case stderrors.Is(err, context.Canceled):
		return New(ErrorTypeCancelled, "batch cancelled", err)
	default:
		return nil
	}
}

// IsType checks if the error chain contains an AppError of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// TypeOf returns the type of the first AppError in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
