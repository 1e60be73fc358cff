package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// FetchErrorCategory classifies why a fetch cycle failed.
type FetchErrorCategory string

const (
	// ErrorCategoryNetwork means the request never completed.
	ErrorCategoryNetwork FetchErrorCategory = "network"
	// ErrorCategoryTimeout means the bounded wait was exceeded.
	ErrorCategoryTimeout FetchErrorCategory = "timeout"
	// ErrorCategoryMalformed means the response arrived but could not be
	// parsed into a full set of tracked indices.
	ErrorCategoryMalformed FetchErrorCategory = "malformed_response"
	// ErrorCategoryExhausted means every provider in the chain failed. This
	// is the only category surfaced to the snapshot store.
	ErrorCategoryExhausted FetchErrorCategory = "all_sources_exhausted"
)

// FetchError is the standardized error produced at the provider-chain
// boundary. Provider-specific error shapes never leak past it.
type FetchError struct {
	Category  FetchErrorCategory `json:"category"`
	Provider  string             `json:"provider"`
	Message   string             `json:"message"`
	Timestamp time.Time          `json:"timestamp"`
	Cause     error              `json:"-"` // Original error, not serialized
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Provider, e.Category, e.Message)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchError creates a new fetch error for a provider.
func NewFetchError(category FetchErrorCategory, provider, message string, cause error) *FetchError {
	return &FetchError{
		Category:  category,
		Provider:  provider,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Retryable reports whether the failure is worth another attempt on a later
// cycle. Malformed payloads are retried too: upstream feeds recover, and the
// scheduler's cadence never changes on errors anyway.
func (e *FetchError) Retryable() bool {
	return true
}

// LogError logs the error with structured fields.
func (e *FetchError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"provider":         e.Provider,
		"error_message":    e.Message,
		"timestamp":        e.Timestamp,
		"underlying_error": e.Cause,
	}).Error("Fetch cycle error")
}

// CategoryOf extracts the category from an error, or empty if it is not a
// FetchError.
func CategoryOf(err error) FetchErrorCategory {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}

// ClassifyTransportError maps a raw HTTP client error onto the taxonomy.
// Deadline expiry and net.Error timeouts become timeouts; anything else that
// prevented a response, including cancellation during shutdown, is a network
// error.
func ClassifyTransportError(err error, provider string) *FetchError {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewFetchError(ErrorCategoryTimeout, provider, "request exceeded bounded wait", err)
	}
	return NewFetchError(ErrorCategoryNetwork, provider, "request never completed", err)
}
