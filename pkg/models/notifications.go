package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification represents an in-app notification delivered to a single user
type Notification struct {
	BaseModel
	UserID  uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"user_id"`
	Type    string     `gorm:"not null" json:"type"` // new_conversation, participant_added, announcement, ...
	Message string     `gorm:"type:text;not null" json:"message"`
	Details Metadata   `gorm:"type:jsonb;default:'{}'" json:"details"`
	IsRead  bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt  *time.Time `json:"read_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
