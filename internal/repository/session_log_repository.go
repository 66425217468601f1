package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/uml-studio/engine/internal/models"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"gorm.io/gorm"
)

type SessionLogRepository interface {
	BaseRepository[models.SessionLog]
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SessionLog, error)
}

type sessionLogRepository struct {
	BaseRepository[models.SessionLog]
	db *gorm.DB
}

func NewSessionLogRepository(db *gorm.DB) SessionLogRepository {
	return &sessionLogRepository{BaseRepository: NewBaseRepository[models.SessionLog](db, "session log"), db: db}
}

func (r *sessionLogRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SessionLog, error) {
	var out []models.SessionLog
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list session logs failed")
	}
	return out, nil
}
