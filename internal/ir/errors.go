package ir

import (
	"errors"
	"fmt"
)

// ErrorCode names a failure surfaced to callers.
type ErrorCode string

const (
	// CodeUnauthorized: the caller is not the identity the record names.
	CodeUnauthorized ErrorCode = "Unauthorized"

	// CodeInvalidSchedule: time ordering or amount violated at creation.
	CodeInvalidSchedule ErrorCode = "InvalidSchedule"

	// CodeAccountAlreadyExists: the derived address is occupied.
	CodeAccountAlreadyExists ErrorCode = "AccountAlreadyExists"

	// CodeClaimNotAvailableYet: the cliff has not been reached.
	CodeClaimNotAvailableYet ErrorCode = "ClaimNotAvailableYet"

	// CodeNothingToClaim: nothing new vested since the last claim.
	CodeNothingToClaim ErrorCode = "NothingToClaim"

	// CodeScheduleStillActive: close attempted with unpaid entitlements.
	CodeScheduleStillActive ErrorCode = "ScheduleStillActive"

	// CodeArithmeticOverflow: a value left its valid range. Always a bug or
	// corrupted storage; the operation aborts and nothing is clamped.
	CodeArithmeticOverflow ErrorCode = "ArithmeticOverflow"

	// CodeAccountNotFound: a referenced record does not exist.
	CodeAccountNotFound ErrorCode = "AccountNotFound"

	// CodeInvalidArgument: malformed input (empty name, mismatched records).
	CodeInvalidArgument ErrorCode = "InvalidArgument"

	// CodeTransferFailed: the ledger refused or could not confirm a transfer.
	CodeTransferFailed ErrorCode = "TransferFailed"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrUnauthorized         = &Error{Code: CodeUnauthorized}
	ErrInvalidSchedule      = &Error{Code: CodeInvalidSchedule}
	ErrAccountAlreadyExists = &Error{Code: CodeAccountAlreadyExists}
	ErrClaimNotAvailableYet = &Error{Code: CodeClaimNotAvailableYet}
	ErrNothingToClaim       = &Error{Code: CodeNothingToClaim}
	ErrScheduleStillActive  = &Error{Code: CodeScheduleStillActive}
	ErrArithmeticOverflow   = &Error{Code: CodeArithmeticOverflow}
	ErrAccountNotFound      = &Error{Code: CodeAccountNotFound}
	ErrInvalidArgument      = &Error{Code: CodeInvalidArgument}
	ErrTransferFailed       = &Error{Code: CodeTransferFailed}
)

// Error is a named failure with structured details.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context (addresses, amounts).
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With returns e with a detail attached. e is modified in place.
func (e *Error) With(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error that wraps cause.
func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
