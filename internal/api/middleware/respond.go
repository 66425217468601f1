package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/uml-studio/engine/internal/api/types"
	appErr "github.com/uml-studio/engine/pkg/errors"
)

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: GetRequestID(r.Context())},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(types.StatusFor(appErr.CodeOf(err)))
	_ = json.NewEncoder(w).Encode(resp)
}
