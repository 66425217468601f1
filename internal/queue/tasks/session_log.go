package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/uml-studio/engine/internal/models"
	"github.com/uml-studio/engine/internal/repository"
	"github.com/uml-studio/engine/pkg/logger"
)

// TypeSessionLog is the asynq task type for authentication audit entries.
const TypeSessionLog = "session:log"

// SessionLogPayload is the task payload for session:log tasks.
type SessionLogPayload struct {
	UserID    string    `json:"user_id"`
	IP        string    `json:"ip"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSessionLogTask(entry models.SessionLog) (*asynq.Task, error) {
	b, err := json.Marshal(SessionLogPayload{
		UserID:    entry.UserID.String(),
		IP:        entry.IP,
		Action:    entry.Action,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session log payload: %w", err)
	}
	return asynq.NewTask(TypeSessionLog, b, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// Enqueuer is the part of *asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSessionRecorder hands audit entries to the worker instead of writing
// them during the request.
type QueueSessionRecorder struct {
	client Enqueuer
}

func NewQueueSessionRecorder(client Enqueuer) *QueueSessionRecorder {
	return &QueueSessionRecorder{client: client}
}

func (r *QueueSessionRecorder) RecordSession(ctx context.Context, entry models.SessionLog) error {
	task, err := NewSessionLogTask(entry)
	if err != nil {
		return err
	}
	info, err := r.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue session log: %w", err)
	}
	logger.L().Debug("session log enqueued", zap.String("task_id", info.ID), zap.String("action", entry.Action))
	return nil
}

// SessionLogTaskHandler persists session:log tasks.
type SessionLogTaskHandler struct {
	repo repository.SessionLogRepository
}

func NewSessionLogTaskHandler(repo repository.SessionLogRepository) *SessionLogTaskHandler {
	return &SessionLogTaskHandler{repo: repo}
}

func (h *SessionLogTaskHandler) HandleSessionLog(ctx context.Context, t *asynq.Task) error {
	var p SessionLogPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid session log task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		logger.L().Error("invalid user id in session log task", zap.String("user_id", p.UserID), zap.Error(err))
		return fmt.Errorf("parse user id: %v: %w", err, asynq.SkipRetry)
	}
	switch p.Action {
	case models.SessionActionRegister, models.SessionActionLogin, models.SessionActionLogout:
	default:
		logger.L().Error("unknown session action", zap.String("action", p.Action))
		return fmt.Errorf("unknown session action %q: %w", p.Action, asynq.SkipRetry)
	}

	entry := &models.SessionLog{UserID: userID, IP: p.IP, Action: p.Action, CreatedAt: p.CreatedAt}
	if err := h.repo.Create(ctx, entry); err != nil {
		logger.L().Error("persist session log failed", zap.String("user_id", userID.String()), zap.Error(err))
		return err
	}

	logger.L().Info("session log persisted", zap.String("user_id", userID.String()), zap.String("action", p.Action))
	return nil
}
