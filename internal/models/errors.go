package models

import "errors"

var (
	ErrValidation   = errors.New("invalid request")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// Error carries a user-facing message on top of one of the sentinel errors
// above, so callers can both match the category and show the text.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error   { return &Error{Err: ErrValidation, Message: msg} }
func NotFound(msg string) error     { return &Error{Err: ErrNotFound, Message: msg} }
func Unauthorized(msg string) error { return &Error{Err: ErrUnauthorized, Message: msg} }
func Forbidden(msg string) error    { return &Error{Err: ErrForbidden, Message: msg} }
func Conflict(msg string) error     { return &Error{Err: ErrConflict, Message: msg} }
