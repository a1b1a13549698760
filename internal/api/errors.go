package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTransport means the request never produced a response.
	ErrTransport = errors.New("admin api unreachable")
	// ErrInvalidResponse means a 2xx response did not match its schema.
	ErrInvalidResponse = errors.New("invalid admin api response")
	// ErrInvalidRequest means a request was rejected before it was sent.
	ErrInvalidRequest = errors.New("invalid admin api request")
)

// Business error codes reported in the envelope's "error" field.
const (
	CodeDuplicateImport = "DUPLICATE_IMPORT"
)

// Error is a response the backend rejected, either with a non-2xx status or
// with success=false.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	// Month is the conflicting month of a duplicate import, when reported.
	Month string
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("admin api %d: %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("admin api %d: %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("admin api error: %d", e.StatusCode)
	}
}

func newError(status int, env envelope) *Error {
	e := &Error{StatusCode: status, Code: env.Error, Message: env.Message}
	if len(env.Data) > 0 {
		var detail struct {
			Month string `json:"month"`
		}
		if err := json.Unmarshal(env.Data, &detail); err == nil {
			e.Month = detail.Month
		}
	}
	return e
}

// AsError unwraps err to a backend *Error.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
