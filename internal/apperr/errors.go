// Package apperr defines the domain error taxonomy surfaced to callers.
//
// Every *Error carries a stable machine-readable Code and a human-readable
// message. Domain errors are never retried by the optimistic-concurrency
// coordinator; only storage-level version conflicts are.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeIllegalArgument      Code = "ILLEGAL_ARGUMENT"
	CodeInvalidDuration      Code = "INVALID_DURATION"
	CodeAccessDenied         Code = "ACCESS_DENIED"
	CodeIllegalPartnerStatus Code = "ILLEGAL_PARTNER_STATUS"
	CodeCoupleMismatch       Code = "COUPLE_MISMATCH"
	CodeUpdateConflict       Code = "UPDATE_CONFLICT"
	CodeInternal             Code = "INTERNAL"
)

// Kind groups codes into the taxonomy callers branch on.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindIllegalArgument Kind = "illegal_argument"
	KindAccessDenied    Kind = "access_denied"
	KindIllegalState    Kind = "illegal_state"
	KindInternal        Kind = "internal"
)

var kinds = map[Code]Kind{
	CodeNotFound:             KindNotFound,
	CodeIllegalArgument:      KindIllegalArgument,
	CodeInvalidDuration:      KindIllegalArgument,
	CodeAccessDenied:         KindAccessDenied,
	CodeIllegalPartnerStatus: KindAccessDenied,
	CodeCoupleMismatch:       KindAccessDenied,
	CodeUpdateConflict:       KindIllegalState,
	CodeInternal:             KindInternal,
}

// Error is the canonical domain error.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind reports the taxonomy group of the error's code.
func (e *Error) Kind() Kind {
	if k, ok := kinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

// New builds a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: strings.TrimSpace(message)}
}

// Wrap annotates cause with a code and operation name.
func Wrap(code Code, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Op: strings.TrimSpace(op), Message: cause.Error(), Cause: cause}
}

// WithOp returns a copy of e tagged with op.
func (e *Error) WithOp(op string) *Error {
	cp := *e
	cp.Op = strings.TrimSpace(op)
	return &cp
}

func NotFound(resource string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func IllegalArgument(message string) *Error {
	return New(CodeIllegalArgument, message)
}

func InvalidDuration() *Error {
	return New(CodeInvalidDuration, "invalid duration: end must not be before start")
}

func AccessDenied(message string) *Error {
	return New(CodeAccessDenied, message)
}

func IllegalPartnerStatus() *Error {
	return New(CodeIllegalPartnerStatus, "illegal partner status")
}

func CoupleMismatch() *Error {
	return New(CodeCoupleMismatch, "couple mismatch")
}

// UpdateConflict reports an optimistic-concurrency conflict that was not
// resolved by retrying. The message always recommends retrying the action.
func UpdateConflict(message string) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "the record was changed by someone else"
	}
	return New(CodeUpdateConflict, message+"; please retry the action")
}

// As extracts the domain error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts the code of err, or "" when err is not a domain error.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// KindOf extracts the taxonomy group of err.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind()
	}
	if err == nil {
		return ""
	}
	return KindInternal
}

// IsCode checks whether err (or a wrapped error) carries code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsKind checks whether err belongs to kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
