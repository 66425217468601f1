package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/uml-studio/engine/internal/api/middleware"
	"github.com/uml-studio/engine/internal/api/types"
	"github.com/uml-studio/engine/internal/diagram"
	"github.com/uml-studio/engine/internal/services"
	appErr "github.com/uml-studio/engine/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProjectsHandler struct {
	projects services.ProjectService
}

func NewProjectsHandler(projects services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// List returns the caller's active projects, newest first. Without a page
// query parameter every project is returned.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filters services.ProjectFilters
	if q.Has("page") || q.Has("page_size") {
		filters.Page, _ = strconv.Atoi(q.Get("page"))
		filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))
		if filters.Page <= 0 {
			filters.Page = 1
		}
		if filters.PageSize <= 0 || filters.PageSize > maxPageSize {
			filters.PageSize = defaultPageSize
		}
	}

	items, total, err := h.projects.ListProjects(r.Context(), middleware.GetUserID(r.Context()), &filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    diagram.NewProjectSummaries(items),
		Meta: &types.Meta{
			RequestID: middleware.GetRequestID(r.Context()),
			Page:      filters.Page,
			PageSize:  filters.PageSize,
			Total:     total,
		},
	})
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectCreateRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.projects.CreateProject(r.Context(), middleware.GetUserID(r.Context()), &services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, diagram.NewProjectSummary(p))
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.projects.GetProject(r.Context(), projectID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, view)
}

// Save replaces the project's classes and relationships with the posted
// document.
func (h *ProjectsHandler) Save(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(w, r)
	if !ok {
		return
	}

	doc, raw, err := diagram.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := doc.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateRequest(doc); err != nil {
		writeError(w, r, err)
		return
	}

	updatedAt, err := h.projects.SaveDiagram(r.Context(), projectID, middleware.GetUserID(r.Context()), doc, raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.SaveResponse{UpdatedAt: updatedAt})
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(w, r)
	if !ok {
		return
	}
	if err := h.projects.DeleteProject(r.Context(), projectID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// projectIDParam reads the {id} path segment. An id that is not a UUID cannot
// name any project, so it is answered like a missing one.
func projectIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, appErr.New(appErr.CodeNotFound, "project not found"))
		return uuid.Nil, false
	}
	return id, true
}
