package service

import (
	"errors"
	"fmt"
	"strings"

	"junket-admin/internal/domain"

	"github.com/go-playground/validator/v10"
)

var (
	ErrBatchNotFound    = errors.New("import batch not found")
	ErrActionNotAllowed = errors.New("action not allowed")
)

// ValidationError is raised before any request leaves the service.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Failure wraps an error from an operation with the text shown when the
// backend gives no message of its own.
type Failure struct {
	Fallback string
	Err      error
}

func (f *Failure) Error() string {
	return f.Fallback + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(fallback string, err error) error {
	return &Failure{Fallback: fallback, Err: err}
}

func notAllowed(batch domain.ImportBatch, action domain.Action) error {
	return fmt.Errorf("%w: cannot %s import %d in status %s", ErrActionNotAllowed, action, batch.ID, batch.Status)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	msg := "is invalid"
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "oneof":
		msg = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		msg = "must be a date in " + fe.Param() + " format"
	case "len", "numeric":
		msg = "has the wrong format"
	case "min", "max", "gte", "lte":
		msg = "is out of range"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}
