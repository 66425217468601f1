package handlers

import (
	"context"
	"net/http"

	appErr "github.com/uml-studio/engine/pkg/errors"
)

// Pinger reports whether a backing store answers.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db(r.Context()); err != nil {
			writeError(w, r, appErr.Wrap(err, appErr.CodeUnavailable, "database unavailable"))
			return
		}
	}
	writeData(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
