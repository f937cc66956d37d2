// Package derrors defines coded domain errors for the vault ledger.
//
// Services return these so transports can translate failures into consistent
// responses without inspecting error strings. Stores return sentinel errors
// (pkg/platform/sentinel) and services wrap them into coded errors here.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	// Ledger-specific failures.
	CodeNotCompliant          Code = "not_compliant"
	CodeInsufficientShares    Code = "insufficient_shares"
	CodeInsufficientLiquidity Code = "insufficient_liquidity"
	CodeInvalidSignature      Code = "invalid_signature"
	CodeInvalidProof          Code = "invalid_proof"
	CodeAlreadyLocked         Code = "already_locked"
	CodeAlreadyDistributed    Code = "already_distributed"
	CodeUnknownReference      Code = "unknown_reference"
	CodePaused                Code = "paused"

	// Ambient failures.
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is a domain error carrying a Code. It supports errors.Is/As and wraps
// an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a readability alias for HasCode at call sites that read like
// dErrors.Is(err, dErrors.CodePaused).
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost code, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status used by the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotCompliant:
		return http.StatusForbidden
	case CodeBadRequest, CodeInvalidInput, CodeValidation,
		CodeInvalidSignature, CodeInvalidProof:
		return http.StatusBadRequest
	case CodeNotFound, CodeUnknownReference:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyLocked, CodeAlreadyDistributed,
		CodeInsufficientShares, CodeInsufficientLiquidity, CodePaused:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
