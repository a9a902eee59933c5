// Package domainerrors defines the coded error type shared by the SSO server
// and broker components. Services return these; the HTTP layers translate them
// into status codes and response envelopes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeNeedLogin means the caller holds no usable credential and should be
	// redirected to the configured login URL. The only code hosts are expected
	// to handle specially.
	CodeNeedLogin Code = "need_login"
	// CodeSignatureInvalid means a checksum failed verification. Always fail
	// closed; never reveal which field mismatched.
	CodeSignatureInvalid Code = "signature_invalid"
	// CodeUntrustedReturnURL guards against open-redirect abuse.
	CodeUntrustedReturnURL Code = "untrusted_return_url"
	// CodeUnauthenticated means login was attempted with an empty identity.
	CodeUnauthenticated Code = "unauthenticated"
	// CodeRemote means the peer returned a well-formed application error.
	CodeRemote Code = "remote_error"
	// CodeTransport means the network call itself failed or timed out.
	CodeTransport Code = "transport_error"
	// CodeProtocol means the peer's response body was malformed or empty.
	CodeProtocol Code = "protocol_error"

	CodeBadRequest Code = "bad_request"
	CodeNotFound   Code = "not_found"
	CodeInternal   Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
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

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause yields
// a plain coded error so call sites don't need to branch.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer should
// emit. NeedLogin maps to 401 rather than a redirect because the redirect
// decision belongs to the hosting application.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNeedLogin, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeSignatureInvalid:
		return http.StatusForbidden
	case CodeUntrustedReturnURL, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRemote, CodeTransport, CodeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
