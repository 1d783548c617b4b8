package models

import "gorm.io/gorm"

type Risk struct {
	gorm.Model
	OrganizationID uint `gorm:"index"`
	Organization   Organization

	CategoryID uint
	Category   AppetiteCategory

	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	OwnerID     uint // User.ID accountable for treatment

	InherentLikelihood int `gorm:"not null"` // 1..5
	InherentImpact     int `gorm:"not null"` // 1..5

	// Derived by the scoring engine on every control change, never
	// user-authored.
	ResidualLikelihood int
	ResidualImpact     int
	ResidualScore      int
}
