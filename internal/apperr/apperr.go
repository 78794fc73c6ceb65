// Package apperr defines the collector's error taxonomy (spec §7) and the
// mapping from error kind to HTTP status, kept separate from business logic
// so handlers are the only place that translates errors into wire responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindSchema        Kind = "SchemaError"
	KindPayloadTooBig Kind = "PayloadTooLarge"
	KindEnrichment    Kind = "EnrichmentUnavailable"
	KindDegraded      Kind = "ScoringDegraded"
	KindStoreTransOK  Kind = "StoreTransient"
	KindStoreFatal    Kind = "StoreFatal"
	KindQueryParam    Kind = "QueryParamError"
	KindNotFound      Kind = "NotFound"
	KindBackpressure  Kind = "Backpressure"
)

// Status maps an error kind to the HTTP status the edge should return.
func (k Kind) Status() int {
	switch k {
	case KindSchema, KindQueryParam:
		return http.StatusBadRequest
	case KindPayloadTooBig:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindStoreFatal:
		return http.StatusInternalServerError
	case KindStoreTransOK, KindBackpressure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a Kind carrying a human-readable detail, suitable for direct
// JSON encoding at the HTTP edge as {"error": kind, "detail": detail}.
type Error struct {
	Kind   Kind
	Detail string
	err    error
}

func New(k Kind, detail string) *Error {
	return &Error{Kind: k, Detail: detail}
}

func Wrap(k Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Detail: err.Error(), err: err}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.err }

// As extracts an *Error from err, returning (nil, false) when err does not
// carry one.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
