package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the machine-readable category of a failure
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindUnauthenticated  Kind = "unauthenticated"
	KindRateLimited      Kind = "rate_limited"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

type metadata struct {
	status        int
	publicMessage string
}

var metadataByKind = map[Kind]metadata{
	KindInvalidInput:     {http.StatusBadRequest, "invalid input"},
	KindNotFound:         {http.StatusNotFound, "resource not found"},
	KindPermissionDenied: {http.StatusForbidden, "you do not have permission to perform this action"},
	KindUnauthenticated:  {http.StatusUnauthorized, "authentication required"},
	KindRateLimited:      {http.StatusTooManyRequests, "rate limit exceeded"},
	KindConflict:         {http.StatusConflict, "conflict detected"},
	KindInternal:         {http.StatusInternalServerError, "internal server error"},
}

// HTTPStatus maps a kind to its response status
func HTTPStatus(kind Kind) int {
	if meta, ok := metadataByKind[kind]; ok {
		return meta.status
	}
	return http.StatusInternalServerError
}

// KindForStatus is the reverse of HTTPStatus for errors raised directly with a status code
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindInvalidInput
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	}
	return KindInternal
}

// Error is a failure carrying a kind and a message safe to show callers
type Error struct {
	kind       Kind
	message    string
	field      string
	cause      error
	retryAfter time.Duration
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

// InvalidField reports a validation failure on a single input field
func InvalidField(field, message string) *Error {
	return &Error{kind: KindInvalidInput, message: message, field: field}
}

// RateLimited reports a throttled call that may be retried after d
func RateLimited(message string, d time.Duration) *Error {
	return &Error{kind: KindRateLimited, message: message, retryAfter: d}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message is the public message, falling back to the kind's default
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.message == "" {
		return metadataByKind[e.kind].publicMessage
	}
	return e.message
}

func (e *Error) Field() string {
	if e == nil {
		return ""
	}
	return e.field
}

func (e *Error) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message()
	if e.field != "" {
		msg = fmt.Sprintf("%s: %s", e.field, msg)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the first *Error in err's chain
func As(err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return nil
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e := As(err); e != nil {
		return e.kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
