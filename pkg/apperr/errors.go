// Package apperr defines the error conditions surfaced by the ordering
// client. Every condition is recoverable; the Kind tells the caller what
// happened to local state.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation is rejected before any network call; state untouched.
	KindValidation Kind = "VALIDATION"
	// KindAuthorization means the backend no longer accepts the PIN.
	KindAuthorization Kind = "AUTHORIZATION"
	// KindTransport covers network failures and timeouts. Retryable.
	KindTransport Kind = "TRANSPORT"
	// KindServerRejection is a structured failure returned by the backend.
	KindServerRejection Kind = "SERVER_REJECTION"
	// KindSessionInvalidated means the backend ended the table session.
	KindSessionInvalidated Kind = "SESSION_INVALIDATED"
	KindUnknown            Kind = "UNKNOWN"
)

type Code string

const (
	CodeEmptyCart            Code = "EMPTY_CART"
	CodeInvalidPIN           Code = "INVALID_PIN"
	CodePINRequired          Code = "PIN_REQUIRED"
	CodeInvalidQR            Code = "INVALID_QR"
	CodeInvalidQuantity      Code = "INVALID_QUANTITY"
	CodeInvalidProduct       Code = "INVALID_PRODUCT"
	CodeInvalidPaymentMethod Code = "INVALID_PAYMENT_METHOD"
	CodeSubmissionInFlight   Code = "SUBMISSION_IN_FLIGHT"

	CodePINRejected Code = "PIN_REJECTED"

	CodeConnectionFailed Code = "CONNECTION_FAILED"

	CodeSubmitFailed      Code = "SUBMIT_FAILED"
	CodeBillRequestFailed Code = "BILL_REQUEST_FAILED"
	CodeTicketFailed      Code = "TICKET_FAILED"

	CodeSessionClosed Code = "SESSION_CLOSED"

	CodeUnknown Code = "UNKNOWN"
)

type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

func Validation(code Code, message string) *Error {
	return newError(KindValidation, code, message, nil)
}

func Authorization(code Code, message string) *Error {
	return newError(KindAuthorization, code, message, nil)
}

func Transport(message string, cause error) *Error {
	return newError(KindTransport, CodeConnectionFailed, message, cause)
}

func Rejection(code Code, message string) *Error {
	return newError(KindServerRejection, code, message, nil)
}

func SessionInvalidated(message string) *Error {
	return newError(KindSessionInvalidated, CodeSessionClosed, message, nil)
}

// KindOf returns KindUnknown for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
