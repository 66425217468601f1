package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/uml-studio/engine/internal/api/middleware"
	"github.com/uml-studio/engine/internal/api/types"
	"github.com/uml-studio/engine/internal/api/validators"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"github.com/uml-studio/engine/pkg/logger"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// writeError renders err with the status of its code. Internal failures are
// logged with their cause and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.StatusFor(appErr.CodeOf(err))
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decodeRequest reads a JSON body into dst and validates it.
func decodeRequest(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	return validateRequest(dst)
}

func validateRequest(v any) error {
	if err := validators.New().Struct(v); err != nil {
		fields := validators.FieldErrors(err)
		if fields == nil {
			return appErr.Wrap(err, appErr.CodeInternal, "validation failed")
		}
		return appErr.Wrap(err, appErr.CodeValidation, "request body failed validation").WithMeta("fields", fields)
	}
	return nil
}
