// Package apperrors defines the error kinds the ledger reports to callers.
// Every error carries a stable machine-readable code and a caller-safe
// message; the underlying cause (driver errors and the like) stays wrapped
// and is never part of the reportable text.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the ledger's boundary.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error // internal cause, not exposed to callers
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorageFailure, Message: message, Err: err}
}

// Stable reportable codes.
const (
	CodeInvalidName     = "INVALID_NAME"
	CodeInvalidType     = "INVALID_ADMISSION_TYPE"
	CodeInvalidDate     = "INVALID_DATE"
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeInvalidActor    = "INVALID_ACTOR"
	CodePatientNotFound = "PATIENT_NOT_FOUND"
	CodeAdminRequired   = "ADMIN_REQUIRED"
	CodeStorageFailure  = "STORAGE_FAILURE"
)

// KindOf extracts the kind from any error in the chain, KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf extracts the stable code from any error in the chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
