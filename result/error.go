package result

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind classifies an Error.
type Kind uint8

const (
	KindGeneric Kind = iota
	KindAllocation
	KindInvalidArgument
	KindLengthExceeded
	KindReentrant
	KindNotBuiltIn
	KindProtocolInternal
	KindEngineBug
)

var kindNames = [...]string{
	KindGeneric:          "generic_engine_error",
	KindAllocation:       "allocation_failure",
	KindInvalidArgument:  "invalid_argument",
	KindLengthExceeded:   "length_exceeded",
	KindReentrant:        "reentrant_call_detected",
	KindNotBuiltIn:       "feature_not_built_in",
	KindProtocolInternal: "protocol_internal_error",
	KindEngineBug:        "engine_bug",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

var (
	ErrAllocation       = errors.New("allocation failure")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrLengthExceeded   = errors.New("length exceeded")
	ErrReentrant        = errors.New("reentrant call detected")
	ErrNotBuiltIn       = errors.New("feature not built in")
	ErrProtocolInternal = errors.New("protocol internal error")
	ErrGeneric          = errors.New("engine error")
	// ErrEngineBug marks a broken internal invariant. It is never retried
	// and should be reported as a defect.
	ErrEngineBug = errors.New("engine bug")
)

var kindErrs = [...]error{
	KindGeneric:          ErrGeneric,
	KindAllocation:       ErrAllocation,
	KindInvalidArgument:  ErrInvalidArgument,
	KindLengthExceeded:   ErrLengthExceeded,
	KindReentrant:        ErrReentrant,
	KindNotBuiltIn:       ErrNotBuiltIn,
	KindProtocolInternal: ErrProtocolInternal,
	KindEngineBug:        ErrEngineBug,
}

// Error is the abnormal result channel: resource exhaustion, misuse, or
// engine defects. Err is always the sentinel matching Kind.
type Error struct {
	Kind   Kind
	Code   Code
	Detail string
	Err    error
}

// NewError builds an Error of kind k with a formatted detail.
func NewError(k Kind, format string, args ...any) *Error {
	return &Error{
		Kind:   k,
		Detail: fmt.Sprintf(format, args...),
		Err:    sentinel(k),
	}
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindProtocolInternal:
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	case e.Detail != "" && e.Code != CodeOK:
		return fmt.Sprintf("%v (%s): %s", e.Err, e.Code, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	case e.Code != CodeOK:
		return fmt.Sprintf("%v: %s", e.Err, e.Code)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var rerr *Error
	if !errors.As(err, &rerr) {
		return 0, false
	}

	return rerr.Kind, true
}

func sentinel(k Kind) error {
	if int(k) < len(kindErrs) {
		return kindErrs[k]
	}

	return ErrGeneric
}
