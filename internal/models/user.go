package models

import "gorm.io/gorm"

type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleRiskOfficer UserRole = "risk_officer"
	RoleAnalyst     UserRole = "analyst"
	RoleViewer      UserRole = "viewer"
)

type User struct {
	gorm.Model
	OrganizationID uint
	Organization   Organization

	Username     string   `gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string   `gorm:"not null"`
	Role         UserRole `gorm:"type:varchar(20);not null"`
}
