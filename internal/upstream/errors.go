package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category is the normalized failure taxonomy for collaborator calls.
type Category string

const (
	// CategoryTransport: collaborator unreachable, timed out, or answered 5xx.
	CategoryTransport Category = "transport"

	// CategoryRejected: collaborator reachable but refused the request (4xx, validation).
	CategoryRejected Category = "rejected"

	// CategoryUnauthorized: credentials or bearer token refused (401/403).
	CategoryUnauthorized Category = "unauthorized"

	// CategoryConflict: the write duplicates an existing resource.
	CategoryConflict Category = "conflict"

	// CategoryBadData: the collaborator answered 2xx with a body we cannot use.
	CategoryBadData Category = "bad_data"
)

// Error wraps a collaborator failure with its normalized category.
type Error struct {
	Service    string
	Op         string
	Category   Category
	StatusCode int
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s [%s]", e.Service, e.Op, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds a categorized collaborator error.
func NewError(category Category, service, op, message string, underlying error) *Error {
	return &Error{
		Service:    service,
		Op:         op,
		Category:   category,
		Message:    message,
		Underlying: underlying,
	}
}

// FromTransport converts a failed round trip (dial, TLS, timeout, cancellation).
func FromTransport(service, op string, err error) *Error {
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return NewError(CategoryTransport, service, op, msg, err)
}

// FromStatus converts a non-2xx response. body is truncated into the message.
func FromStatus(service, op string, status int, body []byte) *Error {
	e := &Error{
		Service:    service,
		Op:         op,
		Category:   CategoryForStatus(status),
		StatusCode: status,
		Message:    truncate(string(body), 256),
	}
	return e
}

// CategoryForStatus classifies an HTTP status code.
func CategoryForStatus(status int) Category {
	switch {
	case status == http.StatusConflict:
		return CategoryConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryUnauthorized
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return CategoryTransport
	case status >= 400 && status < 500:
		return CategoryRejected
	default:
		return CategoryTransport
	}
}

// CategoryOf extracts the category from an error chain. Errors that did not
// come from a collaborator call are reported as transport failures.
func CategoryOf(err error) Category {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Category
	}
	return CategoryTransport
}

// IsConflict reports whether err is a duplicate-resource rejection.
func IsConflict(err error) bool {
	return err != nil && CategoryOf(err) == CategoryConflict
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
