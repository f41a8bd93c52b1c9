package correction

import (
	"errors"
	"fmt"
)

// Kind categorizes correction failures.
type Kind string

const (
	KindInvalidInput           Kind = "invalid_input"
	KindTransport              Kind = "transport"
	KindBackendLogic           Kind = "backend_logic"
	KindMalformedResponse      Kind = "malformed_response"
	KindAllBackendsUnavailable Kind = "all_backends_unavailable"
)

// Sentinels matched through errors.Is on any *Error of the same kind.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrTransport              = errors.New("transport failure")
	ErrBackendLogic           = errors.New("backend reported an error")
	ErrMalformedResponse      = errors.New("malformed response")
	ErrAllBackendsUnavailable = errors.New("all backends unavailable")
)

var sentinels = map[Kind]error{
	KindInvalidInput:           ErrInvalidInput,
	KindTransport:              ErrTransport,
	KindBackendLogic:           ErrBackendLogic,
	KindMalformedResponse:      ErrMalformedResponse,
	KindAllBackendsUnavailable: ErrAllBackendsUnavailable,
}

// Error is a correction failure. For KindAllBackendsUnavailable, Err holds
// the last backend failure.
type Error struct {
	Kind    Kind
	Model   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	if e.Model != "" {
		return fmt.Sprintf("correction: %s [%s]: %s", e.Kind, e.Model, msg)
	}
	return fmt.Sprintf("correction: %s: %s", e.Kind, msg)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := sentinels[e.Kind]; ok {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Last returns the final backend failure behind an aggregate error, or e itself.
func (e *Error) Last() *Error {
	if e.Kind != KindAllBackendsUnavailable {
		return e
	}
	var inner *Error
	if errors.As(e.Err, &inner) {
		return inner
	}
	return e
}

// KindOf returns the kind of the most specific correction failure in err.
// Aggregates report the kind of their last backend failure.
func KindOf(err error) Kind {
	var ce *Error
	if !errors.As(err, &ce) {
		return KindTransport
	}
	return ce.Last().Kind
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}
