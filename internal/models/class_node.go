package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Position is the class box location on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Attribute is a UML class attribute.
type Attribute struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
	IsStatic   bool   `json:"isStatic"`
}

// Parameter is one formal parameter of a Method.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Method is a UML class operation.
type Method struct {
	Name       string      `json:"name"`
	ReturnType string      `json:"returnType"`
	Parameters []Parameter `json:"parameters"`
	Visibility string      `json:"visibility"`
	IsStatic   bool        `json:"isStatic"`
	IsAbstract bool        `json:"isAbstract"`
}

// ClassNode is one class box of a project's diagram. Attributes, methods and
// position are stored as JSON columns in input order.
type ClassNode struct {
	ID         uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID                      `gorm:"type:uuid;index;not null" json:"project_id"`
	Project    *Project                       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Ordinal    int                            `gorm:"not null;default:0" json:"ordinal"`
	Name       string                         `gorm:"type:text;not null" json:"name"`
	Stereotype *string                        `gorm:"type:text" json:"stereotype"`
	Attributes datatypes.JSONSlice[Attribute] `json:"attributes"`
	Methods    datatypes.JSONSlice[Method]    `json:"methods"`
	Position   datatypes.JSONType[Position]   `json:"position"`
	CreatedAt  time.Time                      `json:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at"`
}

func (c *ClassNode) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
