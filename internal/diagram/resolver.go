package diagram

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/uml-studio/engine/internal/models"
)

// IDResolver maps client-local class ids to the durable ids allocated during a
// single save. It must not outlive that save. When two classes share a local
// id the later registration wins; a class without an id is registered under
// the "no id" key, which relationships without an endpoint id also resolve
// against.
type IDResolver struct {
	ids   map[LocalID]uuid.UUID
	newID func() uuid.UUID
}

// NewIDResolver returns an empty resolver that allocates random UUIDs.
func NewIDResolver() *IDResolver {
	return &IDResolver{ids: make(map[LocalID]uuid.UUID), newID: uuid.New}
}

// Register allocates a fresh durable id for local and records it.
func (r *IDResolver) Register(local LocalID) uuid.UUID {
	id := r.newID()
	r.ids[local] = id
	return id
}

// Resolve returns the durable id recorded for local.
func (r *IDResolver) Resolve(local LocalID) (uuid.UUID, bool) {
	id, ok := r.ids[local]
	return id, ok
}

// Len is the number of distinct local ids registered.
func (r *IDResolver) Len() int { return len(r.ids) }

// Plan is the set of rows a save will insert.
type Plan struct {
	Classes       []*models.ClassNode
	Relationships []*models.RelationshipEdge
	// Dropped holds relationships whose source or target did not resolve.
	Dropped []RelationshipDocument
}

// BuildPlan materialises the classes of doc in input order, registering each
// with r, then links relationships whose endpoints both resolve.
func BuildPlan(projectID uuid.UUID, doc *Document, r *IDResolver) Plan {
	classes := doc.ClassList()
	rels := doc.RelationshipList()

	plan := Plan{
		Classes:       make([]*models.ClassNode, 0, len(classes)),
		Relationships: make([]*models.RelationshipEdge, 0, len(rels)),
	}

	for i, c := range classes {
		node := &models.ClassNode{
			ID:         r.Register(c.ID),
			ProjectID:  projectID,
			Ordinal:    i,
			Name:       c.Name,
			Stereotype: c.Stereotype,
			Attributes: datatypes.JSONSlice[models.Attribute](nonNil(c.Attributes)),
			Methods:    datatypes.JSONSlice[models.Method](normalizeMethods(c.Methods)),
			Position:   datatypes.NewJSONType(positionOrOrigin(c.Position)),
		}
		plan.Classes = append(plan.Classes, node)
	}

	for i, rel := range rels {
		src, okSrc := r.Resolve(rel.SourceClassID)
		dst, okDst := r.Resolve(rel.TargetClassID)
		if !okSrc || !okDst {
			plan.Dropped = append(plan.Dropped, rel)
			continue
		}
		plan.Relationships = append(plan.Relationships, &models.RelationshipEdge{
			ID:                 uuid.New(),
			ProjectID:          projectID,
			Ordinal:            i,
			SourceClassID:      src,
			TargetClassID:      dst,
			RelationshipType:   rel.RelationshipType,
			SourceMultiplicity: rel.SourceMultiplicity,
			TargetMultiplicity: rel.TargetMultiplicity,
			Label:              rel.Label,
		})
	}

	return plan
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func normalizeMethods(ms []models.Method) []models.Method {
	out := make([]models.Method, len(ms))
	for i, m := range ms {
		m.Parameters = nonNil(m.Parameters)
		out[i] = m
	}
	return out
}

func positionOrOrigin(p *models.Position) models.Position {
	if p == nil {
		return models.Position{}
	}
	return *p
}
