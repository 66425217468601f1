package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/uml-studio/engine/internal/api/middleware"
	"github.com/uml-studio/engine/internal/services"
	appErr "github.com/uml-studio/engine/pkg/errors"
)

// DiagramHandler serves the class and relationship lists of one project,
// selected with the projectId query parameter.
type DiagramHandler struct {
	projects services.ProjectService
}

func NewDiagramHandler(projects services.ProjectService) *DiagramHandler {
	return &DiagramHandler{projects: projects}
}

func (h *DiagramHandler) Classes(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	classes, err := h.projects.ListClasses(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, classes)
}

func (h *DiagramHandler) Relationships(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rels, err := h.projects.ListRelationships(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, rels)
}

func projectIDQuery(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("projectId")
	if raw == "" {
		return uuid.Nil, appErr.New(appErr.CodeValidation, "request failed validation").
			WithMeta("fields", map[string]string{"projectId": "is required"})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeValidation, "request failed validation").
			WithMeta("fields", map[string]string{"projectId": "must be a valid UUID"})
	}
	return id, nil
}
