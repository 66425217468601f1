package diagram

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/uml-studio/engine/internal/models"
)

// ProjectView is a project as the client loads it.
type ProjectView struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	Description   *string            `json:"description"`
	UserID        uuid.UUID          `json:"userId"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	Classes       []ClassView        `json:"classes"`
	Relationships []RelationshipView `json:"relationships"`
}

// ProjectSummary is a project without its diagram, used in listings.
type ProjectSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ClassView struct {
	ID         uuid.UUID          `json:"id"`
	ProjectID  uuid.UUID          `json:"projectId"`
	Name       string             `json:"name"`
	Stereotype *string            `json:"stereotype"`
	Attributes []models.Attribute `json:"attributes"`
	Methods    []models.Method    `json:"methods"`
	Position   models.Position    `json:"position"`
}

type RelationshipView struct {
	ID                 uuid.UUID `json:"id"`
	ProjectID          uuid.UUID `json:"projectId"`
	SourceClassID      uuid.UUID `json:"sourceClassId"`
	TargetClassID      uuid.UUID `json:"targetClassId"`
	RelationshipType   string    `json:"relationshipType"`
	SourceMultiplicity *string   `json:"sourceMultiplicity"`
	TargetMultiplicity *string   `json:"targetMultiplicity"`
	Label              *string   `json:"label"`
}

// NewProjectView assembles the client view of p from its stored rows. Classes
// and relationships come back in the order they were saved.
func NewProjectView(p *models.Project, classes []models.ClassNode, rels []models.RelationshipEdge) ProjectView {
	return ProjectView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		UserID:        p.UserID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Classes:       NewClassViews(classes),
		Relationships: NewRelationshipViews(rels),
	}
}

func NewProjectSummary(p *models.Project) ProjectSummary {
	return ProjectSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// NewProjectSummaries keeps the order of projects.
func NewProjectSummaries(projects []models.Project) []ProjectSummary {
	out := make([]ProjectSummary, 0, len(projects))
	for i := range projects {
		out = append(out, NewProjectSummary(&projects[i]))
	}
	return out
}

func NewClassViews(classes []models.ClassNode) []ClassView {
	sorted := make([]models.ClassNode, len(classes))
	copy(sorted, classes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ordinal != sorted[j].Ordinal {
			return sorted[i].Ordinal < sorted[j].Ordinal
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	out := make([]ClassView, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, ClassView{
			ID:         c.ID,
			ProjectID:  c.ProjectID,
			Name:       c.Name,
			Stereotype: c.Stereotype,
			Attributes: nonNil([]models.Attribute(c.Attributes)),
			Methods:    normalizeMethods(c.Methods),
			Position:   c.Position.Data(),
		})
	}
	return out
}

func NewRelationshipViews(rels []models.RelationshipEdge) []RelationshipView {
	sorted := make([]models.RelationshipEdge, len(rels))
	copy(sorted, rels)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ordinal != sorted[j].Ordinal {
			return sorted[i].Ordinal < sorted[j].Ordinal
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	out := make([]RelationshipView, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, RelationshipView{
			ID:                 r.ID,
			ProjectID:          r.ProjectID,
			SourceClassID:      r.SourceClassID,
			TargetClassID:      r.TargetClassID,
			RelationshipType:   r.RelationshipType,
			SourceMultiplicity: r.SourceMultiplicity,
			TargetMultiplicity: r.TargetMultiplicity,
			Label:              r.Label,
		})
	}
	return out
}
