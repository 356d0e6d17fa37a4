package aplus

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionError reports a transport-level failure (DNS, TLS, timeout)
// before any HTTP status was received.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("exercise service connection failed for %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ServiceError reports a non-200, non-304 HTTP status from the exercise service.
type ServiceError struct {
	URL        string
	StatusCode int
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("exercise service returned status %d for %s", e.StatusCode, e.URL)
}

// NotModifiedError signals a 304 response to a conditional GET. It is a
// control-flow outcome rather than a failure; Expires carries the parsed
// upstream expiry, zero when the header was absent or unparseable.
type NotModifiedError struct {
	URL     string
	Expires time.Time
}

func (e *NotModifiedError) Error() string {
	return fmt.Sprintf("exercise service content not modified for %s", e.URL)
}

// ParseError reports that a response body could not be parsed into any HTML
// document at all. Malformed but recoverable markup does not produce one.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("exercise service response for %s could not be parsed: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsNotModified reports whether err is a NotModifiedError and returns the
// carried expiry when it is.
func IsNotModified(err error) (time.Time, bool) {
	var notModified *NotModifiedError
	if errors.As(err, &notModified) {
		return notModified.Expires, true
	}
	return time.Time{}, false
}
