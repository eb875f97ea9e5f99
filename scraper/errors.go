package scraper

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted marks a page that failed every allowed attempt.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request, either with
// HTTP 429 or with a throttling message in the payload.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus is any other non-2xx response.
type ErrHTTPStatus struct {
	StatusCode int
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// ErrMalformed indicates a response body that could not be decoded.
type ErrMalformed struct {
	Err error
}

func (e ErrMalformed) Error() string {
	return fmt.Errorf("malformed: %w", e.Err).Error()
}

func (e ErrMalformed) Unwrap() error {
	return e.Err
}

// ErrAPI indicates the API refused the request for a reason other than throttling.
type ErrAPI struct {
	Err error
}

func (e ErrAPI) Error() string {
	return fmt.Errorf("api: %w", e.Err).Error()
}

func (e ErrAPI) Unwrap() error {
	return e.Err
}

// ErrPersist indicates records of a fetched page could not be appended to the output.
type ErrPersist struct {
	Err error
}

func (e ErrPersist) Error() string {
	return fmt.Errorf("persist: %w", e.Err).Error()
}

func (e ErrPersist) Unwrap() error {
	return e.Err
}

// retryKind says how the fetcher reacts to a failed attempt.
type retryKind int

const (
	retryNever retryKind = iota
	retryBackoff
	retryRateLimit
	retryThrottle
)

func retryKindOf(err error) retryKind {
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		var status ErrHTTPStatus
		if errors.As(err, &status) {
			return retryRateLimit
		}
		return retryThrottle
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return retryThrottle
	}
	var timeout ErrTimeout
	var conn ErrConnection
	var notFound ErrNotFound
	var status ErrHTTPStatus
	var transport ErrTransport
	if errors.As(err, &timeout) || errors.As(err, &conn) || errors.As(err, &notFound) ||
		errors.As(err, &status) || errors.As(err, &transport) {
		return retryBackoff
	}
	return retryNever
}

// ErrTransport is a request that failed below HTTP for a reason other than a
// timeout or a refused connection.
type ErrTransport struct {
	Err error
}

func (e ErrTransport) Error() string {
	return fmt.Errorf("transport: %w", e.Err).Error()
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var malformed ErrMalformed
	if errors.As(err, &malformed) {
		return "malformed"
	}
	var api ErrAPI
	if errors.As(err, &api) {
		return "api"
	}
	var persist ErrPersist
	if errors.As(err, &persist) {
		return "persist"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_status"
	}
	var transport ErrTransport
	if errors.As(err, &transport) {
		return "transport"
	}
	return "other"
}
