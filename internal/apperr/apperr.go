// Package apperr classifies pipeline failures so callers can decide whether to
// answer synchronously, record the failure on an entity, or fall back.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPrecondition
	KindProvider
	KindSubprocess
	KindDataInvariant
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindProvider:
		return "provider"
	case KindSubprocess:
		return "subprocess"
	case KindDataInvariant:
		return "data_invariant"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	}
	return "internal"
}

type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels below work with
// errors.Is regardless of message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

var (
	ErrInvalidRange           = &Error{Kind: KindValidation, Code: "InvalidRange"}
	ErrUnknownStylePreset     = &Error{Kind: KindValidation, Code: "UnknownStylePreset"}
	ErrUnsupportedAspectRatio = &Error{Kind: KindValidation, Code: "UnsupportedAspectRatio"}
	ErrInvalidInput           = &Error{Kind: KindValidation, Code: "InvalidInput"}

	ErrNoTranscriptAvailable = &Error{Kind: KindPrecondition, Code: "NoTranscriptAvailable"}
	ErrVideoFileMissing      = &Error{Kind: KindPrecondition, Code: "VideoFileMissing"}
	ErrNotApproved           = &Error{Kind: KindPrecondition, Code: "NotApproved"}
	ErrProviderNotConfigured = &Error{Kind: KindPrecondition, Code: "ProviderNotConfigured"}
	ErrDurationUnknown       = &Error{Kind: KindPrecondition, Code: "DurationUnknown"}

	ErrEncoderUnavailable = &Error{Kind: KindUnavailable, Code: "EncoderUnavailable"}
	ErrQueueFull          = &Error{Kind: KindUnavailable, Code: "QueueFull"}

	ErrNotFound        = &Error{Kind: KindNotFound, Code: "NotFound"}
	ErrStageInProgress = &Error{Kind: KindConflict, Code: "StageInProgress"}
	ErrClipsExist      = &Error{Kind: KindConflict, Code: "ClipsExist"}

	ErrProvider         = &Error{Kind: KindProvider, Code: "ProviderError"}
	ErrSubprocess       = &Error{Kind: KindSubprocess, Code: "SubprocessError"}
	ErrCandidateInvalid = &Error{Kind: KindDataInvariant, Code: "CandidateOutOfBounds"}
)

// New derives an error from a sentinel with a specific message.
func New(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap derives an error from a sentinel carrying cause.
func Wrap(sentinel *Error, err error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
