package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session actions recorded in the audit log.
const (
	SessionActionRegister = "register"
	SessionActionLogin    = "login"
	SessionActionLogout   = "logout"
)

// SessionLog is an audit entry for an authentication event.
type SessionLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	IP        string    `gorm:"type:text;not null" json:"ip"`
	Action    string    `gorm:"type:varchar(16);index;not null" json:"action" validate:"required,oneof=register login logout"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (s *SessionLog) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
