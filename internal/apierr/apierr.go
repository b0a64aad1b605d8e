package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with the HTTP status it should be reported with.
type Error struct {
	Status  int
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, msg string, err error) *Error {
	return &Error{Status: status, Message: msg, Err: err}
}

func BadRequest(msg string, err error) *Error {
	return New(http.StatusBadRequest, msg, err)
}

func NotFound(msg string, err error) *Error {
	return New(http.StatusNotFound, msg, err)
}

func Internal(msg string, err error) *Error {
	return New(http.StatusInternalServerError, msg, err)
}

// StatusOf returns the status carried by err, or 500 for plain errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Body is the JSON error payload. Message wins over the wrapped cause so that
// driver or upstream text does not leak to clients.
type Body struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func BodyOf(err error) Body {
	var e *Error
	if !errors.As(err, &e) {
		return Body{Error: "internal server error"}
	}
	if e.Message != "" {
		return Body{Error: e.Message, Details: e.Details}
	}
	return Body{Error: e.Error(), Details: e.Details}
}
