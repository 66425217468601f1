package types

import (
	"errors"
	"net/http"

	appErr "github.com/uml-studio/engine/pkg/errors"
)

// InternalMessage replaces the message of internal failures so storage
// details never reach clients.
const InternalMessage = "an internal error occurred"

// StatusFor maps an error code to its HTTP status.
func StatusFor(code appErr.Code) int {
	switch code {
	case appErr.CodeInvalid, appErr.CodeMalformedDocument, appErr.CodeValidation:
		return http.StatusBadRequest
	case appErr.CodeUnauthorized:
		return http.StatusUnauthorized
	case appErr.CodeForbidden:
		return http.StatusForbidden
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeConflict, appErr.CodeAlreadyExists:
		return http.StatusConflict
	case appErr.CodeRateLimited:
		return http.StatusTooManyRequests
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if !errors.As(err, &e) {
		return &APIError{Code: string(appErr.CodeInternal), Message: InternalMessage}
	}
	if StatusFor(e.Code) == http.StatusInternalServerError {
		return &APIError{Code: string(appErr.CodeInternal), Message: InternalMessage}
	}
	out := &APIError{Code: string(e.Code), Message: e.Message}
	if fields, ok := e.Meta["fields"].(map[string]string); ok {
		out.Fields = fields
	}
	return out
}
