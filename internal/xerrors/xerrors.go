// Package xerrors implements the error taxonomy of the query execution
// core (spec §7). Every engine-raised error carries a Kind so callers can
// dispatch on errors.As without string matching, and wraps an optional
// cause for diagnostics.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind is the discriminant of the error taxonomy. Values are stable and
// never renumbered across releases, the same rule the teacher applies to
// its table/bucket name constants.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindParse
	KindTypeMismatch
	KindCoerce
	KindNumberOverflow
	KindDivideByZero
	KindTxConflict
	KindNsNotFound
	KindDbNotFound
	KindTbNotFound
	KindFieldNotFound
	KindIxNotFound
	KindIdNotFound
	KindPermissionDenied
	KindThrown
	KindQueryCancelled
	KindQueryTimeout
	KindInvalidArguments
	KindPlannerUnsupported
	KindPlannerUnimplemented
	KindIndexViolation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "Parse"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindCoerce:
		return "CoerceError"
	case KindNumberOverflow:
		return "NumberOverflow"
	case KindDivideByZero:
		return "DivideByZero"
	case KindTxConflict:
		return "TxConflict"
	case KindNsNotFound:
		return "NsNotFound"
	case KindDbNotFound:
		return "DbNotFound"
	case KindTbNotFound:
		return "TbNotFound"
	case KindFieldNotFound:
		return "FieldNotFound"
	case KindIxNotFound:
		return "IxNotFound"
	case KindIdNotFound:
		return "IdNotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindThrown:
		return "ThrownError"
	case KindQueryCancelled:
		return "QueryCancelled"
	case KindQueryTimeout:
		return "QueryTimeout"
	case KindInvalidArguments:
		return "InvalidArguments"
	case KindPlannerUnsupported:
		return "PlannerUnsupported"
	case KindPlannerUnimplemented:
		return "PlannerUnimplemented"
	case KindIndexViolation:
		return "IndexViolation"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every core package returns.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	// Value carries the thrown value for KindThrown errors (a user THROW
	// statement carries an arbitrary Value, not just a string).
	Value any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, xerrors.TxConflict) match any *Error of the same
// Kind, regardless of message.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind && te.Message == ""
	}
	return false
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Thrown(value any) *Error {
	return &Error{Kind: KindThrown, Message: "THROW", Value: value}
}

// sentinels usable with errors.Is(err, xerrors.TxConflict) etc.
var (
	TxConflict           = &Error{Kind: KindTxConflict}
	QueryCancelled       = &Error{Kind: KindQueryCancelled}
	QueryTimeout         = &Error{Kind: KindQueryTimeout}
	PlannerUnsupported   = &Error{Kind: KindPlannerUnsupported}
	PlannerUnimplemented = &Error{Kind: KindPlannerUnimplemented}
)

// Of reports whether err unwraps to an *Error of the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
