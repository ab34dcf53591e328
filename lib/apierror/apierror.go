// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierror defines the error taxonomy shared by every alcheme
// API handler. Each error carries a Kind that maps to exactly one HTTP
// status, so handlers translate errors mechanically instead of
// deciding status codes ad hoc.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure. The zero value is KindInternal so
// that an unclassified error never leaks a misleading 4xx.
type Kind int

const (
	// KindInternal is an unexpected server-side failure (HTTP 500).
	// Details are logged, never sent to the client.
	KindInternal Kind = iota

	// KindUnauthenticated means no valid session credential was
	// presented (HTTP 401). The response never reveals whether the
	// requested resource exists.
	KindUnauthenticated

	// KindInvalidArgument means the request was malformed or
	// disallowed (HTTP 400), e.g. an empty chat message or a
	// self-follow attempt.
	KindInvalidArgument

	// KindNotFound means the referenced entity does not exist
	// (HTTP 404).
	KindNotFound

	// KindForbidden means the caller is authenticated but not
	// permitted to perform the operation (HTTP 403).
	KindForbidden

	// KindConflict means the request contradicts current state
	// (HTTP 409), e.g. publishing a recipe that is already published.
	KindConflict

	// KindTransientConflict means a store transaction exhausted its
	// retries due to concurrent writers (HTTP 503). Safe for the
	// client to retry.
	KindTransientConflict

	// KindUpstreamUnavailable means the external agent service was
	// unreachable. The chat handler never surfaces this as an HTTP
	// status once streaming has begun; it degrades to a fallback
	// stream instead.
	KindUpstreamUnavailable
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindTransientConflict:
		return "transient_conflict"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus returns the HTTP status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTransientConflict:
		return http.StatusServiceUnavailable
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified API error. Message is safe to show to the
// client; Err (optional) carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted client-safe message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The message is client-safe; the
// wrapped error is only for logs.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Unclassified errors
// report KindInternal.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// WriteJSON renders err as the standard {"error": "..."} response with
// the status mapped from its kind. Internal errors are masked with a
// generic message so server details never reach the client.
func WriteJSON(w http.ResponseWriter, err error) {
	kind := KindOf(err)

	message := "Internal Server Error"
	var apiErr *Error
	if errors.As(err, &apiErr) && kind != KindInternal {
		message = apiErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
