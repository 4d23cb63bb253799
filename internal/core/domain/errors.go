package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	// ErrCodeInputValidation means caller-supplied arguments are structurally
	// invalid. The caller must fix the input before retrying.
	ErrCodeInputValidation ErrorCode = "input_validation"

	// ErrCodeProtocolFormat means a document or response does not have the
	// expected shape, i.e., the counterpart is not conformant.
	ErrCodeProtocolFormat ErrorCode = "protocol_format"

	// ErrCodeResponseProcessing means a cross-check between the request and
	// the response failed. Must be surfaced to operators, never retried.
	ErrCodeResponseProcessing ErrorCode = "response_processing"

	// ErrCodeSignaturePageFull means the signature page has no room left for
	// another signature image and the caller asked to fail in that case.
	ErrCodeSignaturePageFull ErrorCode = "signature_page_full"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Title returns a human readable title for this error code.
func (c ErrorCode) Title() string {
	switch c {
	case ErrCodeInputValidation:
		return "Invalid Input"
	case ErrCodeProtocolFormat:
		return "Protocol Error"
	case ErrCodeResponseProcessing:
		return "Response Processing Error"
	case ErrCodeSignaturePageFull:
		return "Signature Page Full"
	default:
		return "Error"
	}
}

// Known reports whether c is one of the defined error codes.
func (c ErrorCode) Known() bool {
	switch c {
	case ErrCodeInputValidation, ErrCodeProtocolFormat, ErrCodeResponseProcessing, ErrCodeSignaturePageFull:
		return true
	default:
		return false
	}
}

// IntegrationError is a structured error with code, message, and optional cause.
// RequestID and CorrelationID are attached so that a failure can be traced
// across the integration and the remote signing service.
type IntegrationError struct {
	Code          ErrorCode
	Message       string
	Field         string
	RequestID     string
	CorrelationID string
	Cause         error
}

// Error implements the error interface.
func (e *IntegrationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s [request-id='%s']", msg, e.RequestID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *IntegrationError) Unwrap() error {
	return e.Cause
}

// Is matches another *IntegrationError with the same code, so sentinel-style
// checks like errors.Is(err, &IntegrationError{Code: ErrCodeProtocolFormat}) work.
func (e *IntegrationError) Is(target error) bool {
	t, ok := target.(*IntegrationError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// WithRequestID returns a copy of the error tagged with the given request id.
func (e *IntegrationError) WithRequestID(requestID string) *IntegrationError {
	c := *e
	c.RequestID = requestID
	return &c
}

// WithCorrelationID returns a copy of the error tagged with the given correlation id.
func (e *IntegrationError) WithCorrelationID(correlationID string) *IntegrationError {
	c := *e
	c.CorrelationID = correlationID
	return &c
}

// CodeOf extracts the error code from err. The second return value is false
// if err does not wrap an *IntegrationError.
func CodeOf(err error) (ErrorCode, bool) {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Code, true
	}
	return "", false
}

// InputValidationError creates an input validation error for the named field.
func InputValidationError(field, message string) *IntegrationError {
	return &IntegrationError{Code: ErrCodeInputValidation, Field: field, Message: message}
}

// ProtocolError creates a protocol format error with optional cause.
func ProtocolError(message string, cause error) *IntegrationError {
	return &IntegrationError{Code: ErrCodeProtocolFormat, Message: message, Cause: cause}
}

// ResponseProcessingError creates a response processing error with optional cause.
func ResponseProcessingError(message string, cause error) *IntegrationError {
	return &IntegrationError{Code: ErrCodeResponseProcessing, Message: message, Cause: cause}
}

// SignaturePageFullError creates a signature page full error.
func SignaturePageFullError(message string) *IntegrationError {
	return &IntegrationError{Code: ErrCodeSignaturePageFull, Message: message}
}
