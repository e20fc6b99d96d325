// Package common defines the sentinel errors shared by the datastore, the
// nutrition client and the HTTP layer. Callers match them with errors.Is and
// wrap them with fmt.Errorf("...: %w") to add context.
package common

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// Client input errors.
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Upstream dependency errors.
	ErrUpstream      = errors.New("upstream error")
	ErrConfiguration = errors.New("configuration error")
)

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsUpstreamError reports whether err came from an external dependency or
// from its missing configuration.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstream) || errors.Is(err, ErrConfiguration)
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns err's text with a trailing client sentinel removed, so
// "weight must be positive: validation error" reads "weight must be positive".
func Message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrAlreadyExists} {
		if errors.Is(err, sentinel) {
			return strings.TrimSuffix(msg, ": "+sentinel.Error())
		}
	}
	return msg
}
