package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type (
	// ValidationError is returned when client supplied data is missing or malformed.
	ValidationError struct {
		Err    error
		Code   string
		Fields []FieldError
	}

	// NotFoundError is returned when the requested resource does not exist (and cannot be derived).
	NotFoundError struct {
		Err  error
		Code string
	}

	// ConflictError is returned when the request conflicts with an operation already running.
	ConflictError struct {
		Err  error
		Code string
	}

	// InternalError tags an unexpected failure with the machine-readable code of the operation that failed.
	InternalError struct {
		Err  error
		Code string
		Msg  string
	}
)

func NewValidationError(code string, err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Code: code, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func NewNotFoundError(code string, err error) error {
	return &NotFoundError{Err: err, Code: code}
}

func (err NotFoundError) Error() string { return err.Err.Error() }

func NewConflictError(code string, err error) error {
	return &ConflictError{Err: err, Code: code}
}

func (err ConflictError) Error() string { return err.Err.Error() }

// NewInternalError wraps err; msg is the generic message shown to clients.
func NewInternalError(code, msg string, err error) error {
	if err == nil {
		err = errors.New(msg)
	}
	return &InternalError{Err: err, Code: code, Msg: msg}
}

func (err InternalError) Error() string { return err.Err.Error() }
