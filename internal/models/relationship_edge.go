package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelationshipEdge links two classes of the same project. RelationshipType is
// free text (association, inheritance, composition, ...).
type RelationshipEdge struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	Project            *Project   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Ordinal            int        `gorm:"not null;default:0" json:"ordinal"`
	SourceClassID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"source_class_id"`
	SourceClass        *ClassNode `gorm:"foreignKey:SourceClassID;constraint:OnDelete:CASCADE" json:"-"`
	TargetClassID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"target_class_id"`
	TargetClass        *ClassNode `gorm:"foreignKey:TargetClassID;constraint:OnDelete:CASCADE" json:"-"`
	RelationshipType   string     `gorm:"type:text;not null" json:"relationship_type"`
	SourceMultiplicity *string    `gorm:"type:text" json:"source_multiplicity"`
	TargetMultiplicity *string    `gorm:"type:text" json:"target_multiplicity"`
	Label              *string    `gorm:"type:text" json:"label"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (r *RelationshipEdge) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
