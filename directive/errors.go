package directive

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by ProtocolError.Is.
var (
	ErrNotJSON            = errors.New("directive is not a JSON object")
	ErrMalformedDirective = errors.New("malformed directive")
)

// ErrorKind classifies a protocol violation.
type ErrorKind string

const (
	KindNotJSON            ErrorKind = "not_json"
	KindMalformedDirective ErrorKind = "malformed_directive"
)

// ProtocolError reports a planner reply that does not follow the directive
// wire format. Raw holds the offending reply verbatim.
type ProtocolError struct {
	Kind   ErrorKind
	Reason string
	Raw    string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol violation (%s): %s", e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is matches the ErrNotJSON and ErrMalformedDirective sentinels by kind.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrNotJSON:
		return e.Kind == KindNotJSON
	case ErrMalformedDirective:
		return e.Kind == KindMalformedDirective
	}
	return false
}

func notJSON(raw string) *ProtocolError {
	return &ProtocolError{
		Kind:   KindNotJSON,
		Reason: "reply must be a single JSON object starting with '{'",
		Raw:    raw,
	}
}

func malformed(raw, reason string, err error) *ProtocolError {
	return &ProtocolError{
		Kind:   KindMalformedDirective,
		Reason: reason,
		Raw:    raw,
		Err:    err,
	}
}
