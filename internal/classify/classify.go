// Package classify implements the error classification layer (C9): a pure
// function from (exception, status, message, context) to a typed Kind that
// is the sole decider of retryability, grounded on the teacher's
// ProviderError / isRetryableStatus / extractRetryAfter pattern in
// internal/providers/guards/guard.go.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the error taxonomy.
type Kind string

const (
	NetworkTimeout    Kind = "network_timeout"
	NetworkConnection Kind = "network_connection"
	RateLimit         Kind = "rate_limit"
	AuthFailure       Kind = "auth_failure"
	ResourceNotFound  Kind = "resource_not_found"
	ProtocolFormat    Kind = "protocol_format"
	ChecksumMismatch  Kind = "checksum_mismatch"
	SchemaMismatch    Kind = "schema_mismatch"
	DataEmpty         Kind = "data_empty"
	InvalidRequest    Kind = "invalid_request"
	Unknown           Kind = "unknown"
)

// retryable reports whether a Kind should ever be retried; it is the sole
// decider used by C5/C8 callers — no call site re-derives retryability from
// status codes itself.
var retryable = map[Kind]bool{
	NetworkTimeout:    true,
	NetworkConnection: true,
	RateLimit:         true,
	AuthFailure:       false,
	ResourceNotFound:  false,
	ProtocolFormat:    false,
	ChecksumMismatch:  false,
	SchemaMismatch:    false,
	DataEmpty:         false,
	InvalidRequest:    false,
	Unknown:           false,
}

// Error is the classified error wrapper threaded through C5/C7/C8. It
// carries the correlation context (venue, symbol, interval) so a single
// structured log line at the boundary has everything an operator needs.
type Error struct {
	Kind       Kind
	Venue      string
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s[%s/%s] status=%d: %s (retry after %v)", e.Kind, e.Venue, e.Op, e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s[%s/%s] status=%d: %s", e.Kind, e.Venue, e.Op, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether this classified error should be retried.
func (e *Error) Retryable() bool { return retryable[e.Kind] }

// Context carries the information needed to classify an error that didn't
// arrive with an HTTP response (e.g. a transport-level failure).
type Context struct {
	Venue      string
	Op         string
	StatusCode int
	Headers    http.Header
	Message    string
}

// FromHTTPStatus classifies a completed HTTP response by status code and
// optional response body message tokens, mirroring guard.go's
// isRetryableStatus but expanded to the full taxonomy required by C9.
func FromHTTPStatus(ctx Context) *Error {
	switch {
	case ctx.StatusCode == http.StatusTooManyRequests, ctx.StatusCode == 418:
		return &Error{
			Kind:       RateLimit,
			Venue:      ctx.Venue,
			Op:         ctx.Op,
			StatusCode: ctx.StatusCode,
			RetryAfter: extractRetryAfter(ctx.Headers),
			Message:    firstNonEmpty(ctx.Message, "rate limited"),
		}
	case ctx.StatusCode == http.StatusUnauthorized, ctx.StatusCode == http.StatusForbidden:
		return &Error{Kind: AuthFailure, Venue: ctx.Venue, Op: ctx.Op, StatusCode: ctx.StatusCode, Message: firstNonEmpty(ctx.Message, "authentication failed")}
	case ctx.StatusCode == http.StatusNotFound:
		return &Error{Kind: ResourceNotFound, Venue: ctx.Venue, Op: ctx.Op, StatusCode: ctx.StatusCode, Message: firstNonEmpty(ctx.Message, "resource not found")}
	case ctx.StatusCode >= 500 && ctx.StatusCode < 600:
		return &Error{Kind: NetworkConnection, Venue: ctx.Venue, Op: ctx.Op, StatusCode: ctx.StatusCode, Message: firstNonEmpty(ctx.Message, "server error")}
	case ctx.StatusCode >= 400 && ctx.StatusCode < 500:
		return &Error{Kind: ProtocolFormat, Venue: ctx.Venue, Op: ctx.Op, StatusCode: ctx.StatusCode, Message: firstNonEmpty(ctx.Message, "client request error")}
	default:
		return &Error{Kind: Unknown, Venue: ctx.Venue, Op: ctx.Op, StatusCode: ctx.StatusCode, Message: ctx.Message}
	}
}

// FromTransportError classifies an error that prevented an HTTP response
// from completing at all (timeouts, connection refused, DNS failure,
// context cancellation).
func FromTransportError(venue, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: NetworkTimeout, Venue: venue, Op: op, Message: "deadline exceeded", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: NetworkConnection, Venue: venue, Op: op, Message: "request canceled", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: NetworkTimeout, Venue: venue, Op: op, Message: netErr.Error(), Err: err}
	default:
		return &Error{Kind: NetworkConnection, Venue: venue, Op: op, Message: err.Error(), Err: err}
	}
}

// NewChecksumMismatch constructs a classified error for a failed SHA-256
// verification against a Vision archive's sibling .CHECKSUM file.
func NewChecksumMismatch(venue, op, message string) *Error {
	return &Error{Kind: ChecksumMismatch, Venue: venue, Op: op, Message: message}
}

// NewSchemaMismatch constructs a classified error for a column-set or
// dtype mismatch detected by C2/C11.
func NewSchemaMismatch(venue, op, message string) *Error {
	return &Error{Kind: SchemaMismatch, Venue: venue, Op: op, Message: message}
}

// NewDataEmpty constructs a classified error for a source that returned a
// well-formed but empty result for the requested range.
func NewDataEmpty(venue, op, message string) *Error {
	return &Error{Kind: DataEmpty, Venue: venue, Op: op, Message: message}
}

// NewProtocolFormat constructs a classified error for malformed payloads
// that parsed as a response but failed structural validation (bad CSV
// header, unexpected JSON shape).
func NewProtocolFormat(venue, op, message string) *Error {
	return &Error{Kind: ProtocolFormat, Venue: venue, Op: op, Message: message}
}

// NewInvalidRequest constructs a classified error for a request rejected
// before any I/O — a combination of options or parameters the engine will
// never attempt to satisfy (see C7's enforce_source=CACHE without
// use_cache, or an interval/market combination no venue supports).
func NewInvalidRequest(venue, op, message string) *Error {
	return &Error{Kind: InvalidRequest, Venue: venue, Op: op, Message: message}
}

func extractRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
