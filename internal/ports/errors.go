package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrProductNotFound indicates the product database has no record for
	// the barcode. This is an expected outcome, not a failure: analysis
	// proceeds on OCR data alone.
	ErrProductNotFound = errors.New("product not found")

	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// GroundingError represents an error from the grounded-reasoning provider.
// It includes details about the model, operation, and any rate limit
// information.
type GroundingError struct {
	// Model is the identifier of the model that generated the error.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if applicable.
	RetryAfter *time.Duration
}

// Error implements the error interface for GroundingError.
func (e *GroundingError) Error() string {
	msg := fmt.Sprintf("grounding error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *GroundingError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *GroundingError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewGroundingError creates a new GroundingError with the given details.
func NewGroundingError(model, operation string, err error) *GroundingError {
	return &GroundingError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// LookupError represents an error from the product database.
type LookupError struct {
	// Barcode is the barcode the lookup was performed for.
	Barcode string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for LookupError.
func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup error: barcode=%s, err=%v", e.Barcode, e.Err)
}

// Unwrap returns the underlying error.
func (e *LookupError) Unwrap() error { return e.Err }

// CacheError represents an error from cache operations.
type CacheError struct {
	// Key is the cache key that was involved in the failed operation.
	Key string

	// Operation is the name of the cache operation that failed.
	Operation string

	// Err is the underlying error that caused the cache operation to fail.
	Err error
}

// Error implements the error interface for CacheError.
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a new CacheError with the given details.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// StoreError represents an error from verdict persistence operations.
type StoreError struct {
	// Operation is the name of the store operation that failed.
	Operation string

	// UserID is the user the operation was performed for.
	UserID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: operation=%s, user=%s, err=%v", e.Operation, e.UserID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }
