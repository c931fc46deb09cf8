package oerror

import "fmt"

// Kind classifies an Error so callers can decide how far a failure propagates.
type Kind uint8

const (
	KindGeneric Kind = iota
	// KindFraming is a byte buffer whose length does not match the length implied by its counts.
	KindFraming
	// KindWorkerUnavailable is a dispatch addressed to a worker that does not exist.
	KindWorkerUnavailable
	// KindOracle is a failure raised by the geometry oracle during a trace.
	KindOracle
	// KindConfiguration is a setting that must be rejected before any frame runs.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindFraming:
		return "framing error"
	case KindWorkerUnavailable:
		return "worker unavailable"
	case KindOracle:
		return "oracle failure"
	case KindConfiguration:
		return "configuration violation"
	default:
		return "error"
	}
}

var (
	ErrFraming           = &Error{Kind: KindFraming}
	ErrWorkerUnavailable = &Error{Kind: KindWorkerUnavailable}
	ErrOracle            = &Error{Kind: KindOracle}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
)

type Error struct {
	Kind Kind
	Err  string

	cause error
}

// New returns a generic error with a formatted message.
func New(format string, args ...any) *Error {
	return &Error{Err: fmt.Sprintf(format, args...)}
}

func Framing(format string, args ...any) *Error {
	return &Error{Kind: KindFraming, Err: fmt.Sprintf(format, args...)}
}

func WorkerUnavailable(format string, args ...any) *Error {
	return &Error{Kind: KindWorkerUnavailable, Err: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Err: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind that unwraps to cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	msg := e.Err
	if msg == "" {
		msg = e.Kind.String()
	} else if e.Kind != KindGeneric {
		msg = e.Kind.String() + ": " + msg
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is one of the kind sentinels (ErrFraming, ErrOracle, ...)
// matching the kind of e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != "" || t.cause != nil {
		return false
	}
	return t.Kind == e.Kind
}
