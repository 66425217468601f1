package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/uml-studio/engine/internal/models"
	"github.com/uml-studio/engine/internal/repository"
	appErr "github.com/uml-studio/engine/pkg/errors"
)

// AccessGuard resolves a project among active rows and checks that the caller
// owns it. Existence is checked before ownership.
type AccessGuard interface {
	Authorize(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
}

type accessGuard struct {
	projectRepo repository.ProjectRepository
}

func NewAccessGuard(projectRepo repository.ProjectRepository) AccessGuard {
	return &accessGuard{projectRepo: projectRepo}
}

func (g *accessGuard) Authorize(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := g.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, appErr.New(appErr.CodeForbidden, "project belongs to another user")
	}
	return &p, nil
}
