package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/uml-studio/engine/internal/models"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"gorm.io/gorm"
)

// ProjectRepository reads and soft-deletes active projects. Delete flags the
// row through gorm.DeletedAt; nothing here removes a project physically.
type ProjectRepository interface {
	BaseRepository[models.Project]
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, int64, error)
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db, "project"), db: db}
}

// ListByUser returns the user's projects newest first. A limit <= 0 returns all of them.
func (r *projectRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Project{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count projects by user failed")
	}

	q = q.Omit("diagram_data").Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	out := []models.Project{}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list projects by user failed")
	}
	return out, total, nil
}
