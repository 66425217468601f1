package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uml-studio/engine/internal/models"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DiagramStore owns the class and relationship rows of projects. Children are
// removed explicitly, relationships before classes, instead of relying on
// database cascades.
type DiagramStore interface {
	// Transaction runs fn against a store bound to one database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx DiagramStore) error) error

	// LockProject takes a row lock on an active project for the rest of the
	// transaction. Databases without row locks treat it as an existence check.
	LockProject(ctx context.Context, projectID uuid.UUID) error
	// ShareProject takes a shared row lock on an active project and returns
	// it. A save waits for the lock, so reads made in the same transaction
	// see the classes and relationships of one save.
	ShareProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	DeleteRelationships(ctx context.Context, projectID uuid.UUID) (int64, error)
	DeleteClasses(ctx context.Context, projectID uuid.UUID) (int64, error)
	CreateClasses(ctx context.Context, classes []*models.ClassNode) error
	CreateRelationships(ctx context.Context, rels []*models.RelationshipEdge) error
	UpdateSnapshot(ctx context.Context, projectID uuid.UUID, data datatypes.JSON, at time.Time) error

	ListClasses(ctx context.Context, projectID uuid.UUID) ([]models.ClassNode, error)
	ListRelationships(ctx context.Context, projectID uuid.UUID) ([]models.RelationshipEdge, error)
}

type diagramStore struct {
	db *gorm.DB
}

var _ DiagramStore = (*diagramStore)(nil)

func NewDiagramStore(db *gorm.DB) DiagramStore {
	return &diagramStore{db: db}
}

func (s *diagramStore) Transaction(ctx context.Context, fn func(tx DiagramStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&diagramStore{db: tx})
	})
}

func (s *diagramStore) LockProject(ctx context.Context, projectID uuid.UUID) error {
	var p models.Project
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&p, "id = ?", projectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.New(appErr.CodeNotFound, "project not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "lock project failed")
	}
	return nil
}

func (s *diagramStore) ShareProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		First(&p, "id = ?", projectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "share project failed")
	}
	return &p, nil
}

func (s *diagramStore) DeleteRelationships(ctx context.Context, projectID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.RelationshipEdge{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete relationships failed")
	}
	return res.RowsAffected, nil
}

func (s *diagramStore) DeleteClasses(ctx context.Context, projectID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.ClassNode{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete classes failed")
	}
	return res.RowsAffected, nil
}

// CreateClasses inserts classes in one batch. Ids are assigned before the
// insert so relationships can reference them within the same transaction.
func (s *diagramStore) CreateClasses(ctx context.Context, classes []*models.ClassNode) error {
	if len(classes) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(classes).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create classes failed")
	}
	return nil
}

func (s *diagramStore) CreateRelationships(ctx context.Context, rels []*models.RelationshipEdge) error {
	if len(rels) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(rels).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create relationships failed")
	}
	return nil
}

func (s *diagramStore) UpdateSnapshot(ctx context.Context, projectID uuid.UUID, data datatypes.JSON, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{"diagram_data": data, "updated_at": at})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update project snapshot failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "project not found")
	}
	return nil
}

func (s *diagramStore) ListClasses(ctx context.Context, projectID uuid.UUID) ([]models.ClassNode, error) {
	out := []models.ClassNode{}
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("ordinal").Order("id").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list classes failed")
	}
	return out, nil
}

func (s *diagramStore) ListRelationships(ctx context.Context, projectID uuid.UUID) ([]models.RelationshipEdge, error) {
	out := []models.RelationshipEdge{}
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("ordinal").Order("id").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list relationships failed")
	}
	return out, nil
}
