// Package apperrors defines the typed failures surfaced by the chat service
// and their HTTP mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeInvalidParticipants Code = "INVALID_PARTICIPANTS"
	CodeInternal            Code = "INTERNAL"
	CodeCanceled            Code = "CANCELED"
)

// StatusClientClosedRequest is answered when the client went away before
// the response was ready. Nothing reads it; it keeps these out of the 5xx logs.
const StatusClientClosedRequest = 499

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError with the same code and message, so a wrapped copy
// of a sentinel still satisfies errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

var (
	ErrAuthenticationRequired = New(CodeUnauthenticated, "authentication required")
	ErrForbidden              = New(CodePermissionDenied, "not a participant of this conversation")
	ErrConversationNotFound   = New(CodeNotFound, "conversation not found")
	ErrListingNotFound        = New(CodeNotFound, "listing not found")
	ErrInvalidParticipants    = New(CodeInvalidParticipants, "buyer and seller must be different users")
)

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal for anything else.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument, CodeInvalidParticipants:
		return http.StatusBadRequest
	case CodeCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to show a client. Internal causes are
// never echoed.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Message
	}
	return "internal server error"
}
