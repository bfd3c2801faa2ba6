// Package apperrors carries the error kinds shared by every layer of the
// chatbot backend. Handlers map a kind to an HTTP status; the dialogue maps
// NotFound and Collaborator failures to in-band replies.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindCollaborator  Kind = "collaborator"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindUnauthorized  Kind = "unauthorized"
	KindInternal      Kind = "internal"
)

// AppError is the single structured error type returned by services.
type AppError struct {
	Kind    Kind
	Field   string // set for validation failures
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, cause error, format string, args ...interface{}) *AppError {
	return &AppError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func Configuration(cause error, format string, args ...interface{}) *AppError {
	return newError(KindConfiguration, cause, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return newError(KindNotFound, nil, format, args...)
}

func Collaborator(cause error, format string, args ...interface{}) *AppError {
	return newError(KindCollaborator, cause, format, args...)
}

// Validation reports a problem with a single input field.
func Validation(field, message string) *AppError {
	return &AppError{Kind: KindValidation, Field: field, Message: message}
}

func Conflict(cause error, format string, args ...interface{}) *AppError {
	return newError(KindConflict, cause, format, args...)
}

func Unauthorized(format string, args ...interface{}) *AppError {
	return newError(KindUnauthorized, nil, format, args...)
}

func Internal(cause error, format string, args ...interface{}) *AppError {
	return newError(KindInternal, cause, format, args...)
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Body renders err as the JSON error payload used by every handler.
func Body(err error) map[string]interface{} {
	body := map[string]interface{}{"error": err.Error(), "kind": KindOf(err)}
	var appErr *AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
	}
	return body
}
