package services

import (
	"context"

	"github.com/uml-studio/engine/internal/models"
	"github.com/uml-studio/engine/internal/repository"
)

// SessionRecorder persists authentication audit entries. Implementations may
// write synchronously or hand the entry to a background worker.
type SessionRecorder interface {
	RecordSession(ctx context.Context, entry models.SessionLog) error
}

type storeSessionRecorder struct {
	repo repository.SessionLogRepository
}

// NewStoreSessionRecorder writes entries straight to the database.
func NewStoreSessionRecorder(repo repository.SessionLogRepository) SessionRecorder {
	return &storeSessionRecorder{repo: repo}
}

func (r *storeSessionRecorder) RecordSession(ctx context.Context, entry models.SessionLog) error {
	return r.repo.Create(ctx, &entry)
}
