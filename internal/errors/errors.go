// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrUnsupportedRetailer = errors.New("unsupported retailer")
	ErrPriceNotFound       = errors.New("price not found")
	ErrInvalidPriceFormat  = errors.New("invalid price format")
	ErrRender              = errors.New("page render failed")
	ErrProductNotFound     = errors.New("product not found")
	ErrRetailerNotFound    = errors.New("retailer not found")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrStoreClosed         = errors.New("store is closed")
)

// ExtractionError represents a failed price extraction for a single URL.
type ExtractionError struct {
	URL      string
	Retailer string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Retailer != "" {
		return fmt.Sprintf("extract [%s] %s after %d attempt(s): %v", e.Retailer, e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("extract %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(url, retailer string, attempts int, err error) *ExtractionError {
	return &ExtractionError{
		URL:      url,
		Retailer: retailer,
		Attempts: attempts,
		Err:      err,
	}
}

// StoreError represents an error from a persistence operation.
type StoreError struct {
	Op        string
	ProductID string
	URL       string
	Err       error
}

func (e *StoreError) Error() string {
	switch {
	case e.URL != "":
		return fmt.Sprintf("store %s [%s] %s: %v", e.Op, e.ProductID, e.URL, e.Err)
	case e.ProductID != "":
		return fmt.Sprintf("store %s [%s]: %v", e.Op, e.ProductID, e.Err)
	default:
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, productID, url string, err error) *StoreError {
	return &StoreError{
		Op:        op,
		ProductID: productID,
		URL:       url,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsRetryable reports whether an extraction failure may succeed on another
// attempt. Unsupported URLs and cancelled contexts never will.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedRetailer) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
