package models

import "gorm.io/gorm"

type AppetiteLevel string

const (
	AppetiteZero     AppetiteLevel = "zero"
	AppetiteLow      AppetiteLevel = "low"
	AppetiteModerate AppetiteLevel = "moderate"
	AppetiteHigh     AppetiteLevel = "high"
)

// AppetiteCategory groups risks under one board-declared appetite level
// and owns the tolerance metrics that make the appetite measurable.
type AppetiteCategory struct {
	gorm.Model
	OrganizationID uint
	Organization   Organization

	Name      string        `gorm:"size:255;not null"`
	Appetite  AppetiteLevel `gorm:"type:varchar(20);not null"`
	Statement string        `gorm:"type:text"` // board wording of the appetite

	Metrics []ToleranceMetric `gorm:"foreignKey:CategoryID"`
}
