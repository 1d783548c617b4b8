package models

import "gorm.io/gorm"

type ControlTarget string

const (
	TargetLikelihood ControlTarget = "likelihood"
	TargetImpact     ControlTarget = "impact"
	TargetBoth       ControlTarget = "both"
)

// Control is a mitigating measure assessed on four dimensions, each 0..3:
// design, implementation, monitoring, evaluation.
type Control struct {
	gorm.Model
	OrganizationID uint `gorm:"index"`
	Organization   Organization

	Name        string        `gorm:"size:255;not null"`
	Description string        `gorm:"type:text"`
	Target      ControlTarget `gorm:"type:varchar(20);not null"` // which rating dimension it reduces

	Design         int `gorm:"not null"`
	Implementation int `gorm:"not null"`
	Monitoring     int `gorm:"not null"`
	Evaluation     int `gorm:"not null"`
}

// RiskControl links a mitigating control to a risk.
type RiskControl struct {
	ID uint `gorm:"primaryKey"`

	RiskID    uint `gorm:"uniqueIndex:idx_risk_control"`
	ControlID uint `gorm:"uniqueIndex:idx_risk_control"`

	Risk    Risk
	Control Control
}
