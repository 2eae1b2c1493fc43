// Package errors carries the API error codes and their HTTP mapping. Domain
// code returns *Error; handlers turn it into the error envelope.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Marketplace codes surfaced verbatim to clients.
	CodeInvalidAmount             Code = "INVALID_AMOUNT"
	CodeInsufficientFunds         Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientStock         Code = "INSUFFICIENT_STOCK"
	CodeProductNotFound           Code = "PRODUCT_NOT_FOUND"
	CodeMissingReason             Code = "MISSING_REASON"
	CodeReasonTooLong             Code = "REASON_TOO_LONG"
	CodeNetwork                   Code = "NETWORK_ERROR"
	CodeInsufficientWalletBalance Code = "INSUFFICIENT_WALLET_BALANCE"
)

// Metadata is how a code is presented over HTTP. Retryable codes hide the
// internal message behind PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type metaOpt func(*Metadata)

func retryable(m *Metadata)   { m.Retryable = true }
func withDetails(m *Metadata) { m.DetailsAllowed = true }

func meta(status int, public string, opts ...metaOpt) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     meta(http.StatusForbidden, "access denied"),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found"),
	CodeConflict:      meta(http.StatusConflict, "conflict detected"),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),

	CodeInvalidAmount:             meta(http.StatusBadRequest, "amount must be greater than zero", withDetails),
	CodeInsufficientFunds:         meta(http.StatusUnprocessableEntity, "insufficient wallet balance", withDetails),
	CodeInsufficientStock:         meta(http.StatusConflict, "insufficient stock", withDetails),
	CodeProductNotFound:           meta(http.StatusNotFound, "product not found"),
	CodeMissingReason:             meta(http.StatusBadRequest, "rejection reason is required"),
	CodeReasonTooLong:             meta(http.StatusBadRequest, "rejection reason is too long", withDetails),
	CodeNetwork:                   meta(http.StatusServiceUnavailable, "Network error: Cannot connect to server", retryable),
	CodeInsufficientWalletBalance: meta(http.StatusUnprocessableEntity, "insufficient wallet balance", withDetails),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional cause and client-visible details.
// Methods are safe on a nil receiver.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	return As(err).codeIs(code)
}

func (e *Error) codeIs(code Code) bool {
	return e != nil && e.code == code
}
