package extract

import (
	"errors"
	"strings"
)

type Kind string

const (
	EmptyInput      Kind = "empty_input"
	InputTooLong    Kind = "input_too_long"
	ModelCallFailed Kind = "model_call_failed"
	NoJSONFound     Kind = "no_json_found"
	MalformedJSON   Kind = "malformed_json"
	SchemaViolation Kind = "schema_violation"
	NoValidProducts Kind = "no_valid_products"
)

// Error is returned for every failed extraction. Details lists individual schema
// violations when Kind is SchemaViolation.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// IsKind reports whether err is an extraction error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
