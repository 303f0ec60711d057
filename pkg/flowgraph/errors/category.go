// Package errors provides the pipeline's error kinds, their categorization,
// and the bounded retry loop that consults it.
//
// Only two kinds are worth another attempt:
//   - GenerationError: the service failed, a later call may succeed
//   - MalformedResponseError: the model answered badly, it may answer better
//
// Everything else is permanent and aborts the stage immediately.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, unreachable service.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: missing inputs, invalid configuration.
	CategoryPermanent

	// CategoryMalformed indicates the model produced unusable output.
	CategoryMalformed
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return CategoryTransient
	}

	var malErr *MalformedResponseError
	if errors.As(err, &malErr) {
		return CategoryMalformed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	switch Categorize(err) {
	case CategoryTransient, CategoryMalformed:
		return true
	default:
		return false
	}
}

// IsMalformed reports whether the error came from unusable model output.
func IsMalformed(err error) bool {
	return Categorize(err) == CategoryMalformed
}
