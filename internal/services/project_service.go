package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/uml-studio/engine/internal/cache"
	"github.com/uml-studio/engine/internal/diagram"
	"github.com/uml-studio/engine/internal/models"
	"github.com/uml-studio/engine/internal/repository"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"github.com/uml-studio/engine/pkg/logger"
)

type ProjectService interface {
	// Project CRUD
	CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*diagram.ProjectView, error)
	ListProjects(ctx context.Context, userID uuid.UUID, filters *ProjectFilters) ([]models.Project, int64, error)
	DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error

	// Diagram
	SaveDiagram(ctx context.Context, projectID, userID uuid.UUID, doc *diagram.Document, raw json.RawMessage) (time.Time, error)
	ListClasses(ctx context.Context, projectID, userID uuid.UUID) ([]diagram.ClassView, error)
	ListRelationships(ctx context.Context, projectID, userID uuid.UUID) ([]diagram.RelationshipView, error)
}

type CreateProjectInput struct {
	Name        string
	Description *string
}

// ProjectFilters paginates listings. A zero PageSize lists everything.
type ProjectFilters struct {
	Page     int
	PageSize int
}

type projectService struct {
	projectRepo repository.ProjectRepository
	diagrams    repository.DiagramStore
	guard       AccessGuard
	cache       cache.ProjectCache
	now         func() time.Time
}

func NewProjectService(projectRepo repository.ProjectRepository, diagrams repository.DiagramStore, projectCache cache.ProjectCache) ProjectService {
	if projectCache == nil {
		projectCache = cache.NoopProjectCache{}
	}
	return &projectService{
		projectRepo: projectRepo,
		diagrams:    diagrams,
		guard:       NewAccessGuard(projectRepo),
		cache:       projectCache,
		now:         time.Now,
	}
}

// Ensure interfaces are satisfied at compile time
var _ ProjectService = (*projectService)(nil)

func (s *projectService) CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error) {
	logger.L().Info("create project called", zap.String("user_id", userID.String()), zap.String("name", input.Name))

	p := &models.Project{
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		DiagramData: datatypes.JSON(`{"classes":[],"relationships":[]}`),
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.L().Info("project created", zap.String("project_id", p.ID.String()), zap.String("user_id", userID.String()))
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*diagram.ProjectView, error) {
	logger.L().Info("get project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))

	p, err := s.guard.Authorize(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if view, ok, err := s.cache.Get(ctx, projectID); err != nil {
		logger.L().Warn("project cache read failed", zap.String("project_id", projectID.String()), zap.Error(err))
	} else if ok && view.UpdatedAt.Equal(p.UpdatedAt) {
		return view, nil
	} else if ok {
		logger.L().Debug("stale project cache entry", zap.String("project_id", projectID.String()),
			zap.Time("cached", view.UpdatedAt), zap.Time("current", p.UpdatedAt))
	}

	view, err := s.loadView(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, view); err != nil {
		logger.L().Warn("project cache write failed", zap.String("project_id", projectID.String()), zap.Error(err))
	}
	return view, nil
}

// loadView reads the project row and its diagram under a shared lock, so the
// view never mixes the rows of two saves.
func (s *projectService) loadView(ctx context.Context, projectID uuid.UUID) (*diagram.ProjectView, error) {
	var view diagram.ProjectView
	err := s.diagrams.Transaction(ctx, func(tx repository.DiagramStore) error {
		p, err := tx.ShareProject(ctx, projectID)
		if err != nil {
			return err
		}
		classes, err := tx.ListClasses(ctx, projectID)
		if err != nil {
			return err
		}
		rels, err := tx.ListRelationships(ctx, projectID)
		if err != nil {
			return err
		}
		view = diagram.NewProjectView(p, classes, rels)
		return nil
	})
	if err != nil {
		if appErr.CodeOf(err) != appErr.CodeUnknown {
			return nil, err
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "load diagram failed")
	}
	return &view, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID, filters *ProjectFilters) ([]models.Project, int64, error) {
	logger.L().Info("list projects", zap.String("user_id", userID.String()))

	limit, offset := 0, 0
	if filters != nil && filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		limit, offset = filters.PageSize, (page-1)*filters.PageSize
	}
	return s.projectRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *projectService) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	logger.L().Info("delete project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))

	if _, err := s.guard.Authorize(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return err
	}
	s.invalidate(ctx, projectID)

	logger.L().Info("project deleted", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return nil
}

// SaveDiagram replaces every class and relationship of the project with the
// ones in doc, inside one transaction. Relationships whose endpoints do not
// resolve to a class of doc are dropped. Once the transaction has started it
// runs to commit or rollback even if ctx is cancelled.
func (s *projectService) SaveDiagram(ctx context.Context, projectID, userID uuid.UUID, doc *diagram.Document, raw json.RawMessage) (time.Time, error) {
	log := logger.L().With(zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	log.Info("save diagram start")

	if _, err := s.guard.Authorize(ctx, projectID, userID); err != nil {
		return time.Time{}, err
	}
	if err := doc.Validate(); err != nil {
		return time.Time{}, err
	}

	snapshot := datatypes.JSON(raw)
	if len(raw) == 0 {
		b, err := json.Marshal(doc)
		if err != nil {
			return time.Time{}, appErr.Wrap(err, appErr.CodeInternal, "encode diagram snapshot failed")
		}
		snapshot = datatypes.JSON(b)
	}

	updatedAt := s.now().UTC().Truncate(time.Microsecond)
	txCtx := context.WithoutCancel(ctx)

	var plan diagram.Plan
	err := s.diagrams.Transaction(txCtx, func(tx repository.DiagramStore) error {
		if err := tx.LockProject(txCtx, projectID); err != nil {
			return err
		}
		// relationships reference classes, so they go first
		if _, err := tx.DeleteRelationships(txCtx, projectID); err != nil {
			return err
		}
		if _, err := tx.DeleteClasses(txCtx, projectID); err != nil {
			return err
		}

		plan = diagram.BuildPlan(projectID, doc, diagram.NewIDResolver())
		if err := tx.CreateClasses(txCtx, plan.Classes); err != nil {
			return err
		}
		if err := tx.CreateRelationships(txCtx, plan.Relationships); err != nil {
			return err
		}
		return tx.UpdateSnapshot(txCtx, projectID, snapshot, updatedAt)
	})
	if err != nil {
		log.Error("save diagram failed", zap.Error(err))
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return time.Time{}, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return time.Time{}, appErr.Wrap(err, appErr.CodeInternal, "save diagram failed")
	}

	for _, rel := range plan.Dropped {
		log.Warn("dropped relationship with unresolved endpoint",
			zap.Stringer("source_class_id", rel.SourceClassID),
			zap.Stringer("target_class_id", rel.TargetClassID),
			zap.String("relationship_type", rel.RelationshipType))
	}
	s.invalidate(txCtx, projectID)

	log.Info("diagram saved",
		zap.Int("classes", len(plan.Classes)),
		zap.Int("relationships", len(plan.Relationships)),
		zap.Int("dropped", len(plan.Dropped)))
	return updatedAt, nil
}

func (s *projectService) ListClasses(ctx context.Context, projectID, userID uuid.UUID) ([]diagram.ClassView, error) {
	if _, err := s.guard.Authorize(ctx, projectID, userID); err != nil {
		return nil, err
	}
	classes, err := s.diagrams.ListClasses(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return diagram.NewClassViews(classes), nil
}

func (s *projectService) ListRelationships(ctx context.Context, projectID, userID uuid.UUID) ([]diagram.RelationshipView, error) {
	if _, err := s.guard.Authorize(ctx, projectID, userID); err != nil {
		return nil, err
	}
	rels, err := s.diagrams.ListRelationships(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return diagram.NewRelationshipViews(rels), nil
}

// invalidate drops the cached view. A failure is only logged: GetProject
// ignores entries older than the project row.
func (s *projectService) invalidate(ctx context.Context, projectID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, projectID); err != nil {
		logger.L().Warn("project cache invalidation failed", zap.String("project_id", projectID.String()), zap.Error(err))
	}
}
