// Package apperrors classifies failures so the HTTP layer can map them to a
// status code and a client-safe message.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

// Kind classifies an error by how it should be reported to a client.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindUnauthorized   Kind = "AUTH_ERROR"
	KindForbidden      Kind = "FORBIDDEN"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindTooLarge       Kind = "FILE_TOO_LARGE"
	KindUnprocessable  Kind = "DATA_PROCESSING_ERROR"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindNotImplemented Kind = "NOT_IMPLEMENTED"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind, a client-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, NotFound(""))
// style checks work without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func Unauthorized(message string) *Error  { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error     { return New(KindForbidden, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func Unprocessable(message string) *Error { return New(KindUnprocessable, message) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the text safe to return to a client. Classified errors
// expose their own message; anything else is sanitized.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return Sanitize(e.Message)
	}
	return "An unexpected error occurred: " + Sanitize(err.Error())
}

var (
	pathPattern   = regexp.MustCompile(`/[^\s]+`)
	apiKeyPattern = regexp.MustCompile(`sk-[a-zA-Z0-9]+`)
)

const maxPublicMessageLen = 200

// Sanitize redacts filesystem paths and API-key-shaped substrings and caps the
// message length.
func Sanitize(message string) string {
	message = pathPattern.ReplaceAllString(message, "[PATH]")
	message = apiKeyPattern.ReplaceAllString(message, "[API_KEY]")
	if len(message) > maxPublicMessageLen {
		message = message[:maxPublicMessageLen] + "..."
	}
	return message
}
