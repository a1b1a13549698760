package server

import (
	"errors"
	"net/http"

	"junket-admin/internal/api"
	"junket-admin/internal/service"

	"connectrpc.com/connect"
)

func errorCode(err error) connect.Code {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return connect.CodeInvalidArgument
	case errors.Is(err, service.ErrActionNotAllowed):
		return connect.CodeFailedPrecondition
	case errors.Is(err, service.ErrBatchNotFound):
		return connect.CodeNotFound
	case errors.Is(err, api.ErrTransport):
		return connect.CodeUnavailable
	}

	apiErr, ok := api.AsError(err)
	if !ok {
		return connect.CodeInternal
	}
	if apiErr.Code == api.CodeDuplicateImport {
		return connect.CodeAlreadyExists
	}
	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return connect.CodeInvalidArgument
	case http.StatusUnauthorized:
		return connect.CodeUnauthenticated
	case http.StatusForbidden:
		return connect.CodePermissionDenied
	case http.StatusNotFound:
		return connect.CodeNotFound
	case http.StatusConflict:
		return connect.CodeAborted
	}
	if apiErr.StatusCode >= 500 {
		return connect.CodeUnavailable
	}
	return connect.CodeFailedPrecondition
}

// connectError carries the operator-facing text, not the wrapped chain.
func connectError(err error) *connect.Error {
	return connect.NewError(errorCode(err), errors.New(service.Describe(err)))
}

var httpStatus = map[connect.Code]int{
	connect.CodeInvalidArgument:    http.StatusBadRequest,
	connect.CodeFailedPrecondition: http.StatusConflict,
	connect.CodeNotFound:           http.StatusNotFound,
	connect.CodeAlreadyExists:      http.StatusConflict,
	connect.CodeAborted:            http.StatusConflict,
	connect.CodeUnauthenticated:    http.StatusUnauthorized,
	connect.CodePermissionDenied:   http.StatusForbidden,
	connect.CodeUnavailable:        http.StatusBadGateway,
	connect.CodeInternal:           http.StatusInternalServerError,
}

func statusFor(err error) int {
	if s, ok := httpStatus[errorCode(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
