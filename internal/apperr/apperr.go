package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. Validation and reference errors carry
// enough detail (field, value) to fix the request; state and authorization
// errors are caller or policy bugs; conflict errors may be retried after a re-read.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindReference     Kind = "reference"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
)

const (
	CodeEmptyOrder             = "EMPTY_ORDER"
	CodeUnknownServiceType     = "UNKNOWN_SERVICE_TYPE"
	CodeUnknownComplexityLevel = "UNKNOWN_COMPLEXITY_LEVEL"
	CodeInvalidAddOn           = "INVALID_ADD_ON"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodeReasonRequired         = "REASON_REQUIRED"
	CodeFinalValuesLocked      = "FINAL_VALUES_LOCKED"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnknownOrderItem       = "UNKNOWN_ORDER_ITEM"
	CodeEstimateLocked         = "ESTIMATE_LOCKED"
	CodeItemsLocked            = "ITEMS_LOCKED"
	CodeOrderClosed            = "ORDER_CLOSED"
	CodeChangeRequestClosed    = "CHANGE_REQUEST_CLOSED"
)

type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Value   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s=%q)", e.Code, e.Message, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error by Kind, and by Code when the target sets one.
// errors.Is(err, apperr.ErrConflict) therefore works for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks by kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrReference     = &Error{Kind: KindReference}
	ErrState         = &Error{Kind: KindState}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

func Validation(code, field, value, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Value: value, Message: message}
}

func Reference(code, field, value, message string) *Error {
	return &Error{Kind: KindReference, Code: code, Field: field, Value: value, Message: message}
}

func State(code, message string) *Error {
	return &Error{Kind: KindState, Code: code, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: message}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" for
// errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
