package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project is a UML class diagram owned by a user. DiagramData keeps the last
// saved document verbatim; the class and relationship tables are the source
// of truth.
type Project struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id" validate:"required"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name        string         `gorm:"type:text;not null" json:"name" validate:"required"`
	Description *string        `gorm:"type:text" json:"description"`
	DiagramData datatypes.JSON `json:"diagram_data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
