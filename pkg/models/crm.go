package models

import (
	"github.com/google/uuid"
)

// Office represents a consultancy branch office
type Office struct {
	BaseModel
	Name     string `gorm:"not null" json:"name" validate:"required"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// Lead represents a prospective student record
type Lead struct {
	BaseModel
	UserID               *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"user_id"`
	Name                 string     `gorm:"not null" json:"name" validate:"required"`
	Email                string     `gorm:"index" json:"email"`
	Phone                string     `json:"phone"`
	OfficeID             *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"office_id"`
	AssignedConsultantID *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"assigned_consultant_id"`
	Status               string     `gorm:"default:'new'" json:"status"` // new, contacted, in_progress, converted, lost

	// Relations
	Office             *Office `gorm:"foreignKey:OfficeID" json:"office,omitempty"`
	AssignedConsultant *User   `gorm:"foreignKey:AssignedConsultantID" json:"assigned_consultant,omitempty"`
}
