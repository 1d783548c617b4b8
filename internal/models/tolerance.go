package models

import (
	"time"

	"gorm.io/gorm"

	"minrisk/internal/appetite"
)

// ToleranceMetric is one quantitative limit inside an appetite category.
// Only the bound columns matching MetricType are meaningful; the rest stay
// zero.
type ToleranceMetric struct {
	gorm.Model
	OrganizationID uint `gorm:"index"`
	Organization   Organization

	CategoryID uint `gorm:"index"`
	Category   AppetiteCategory

	Name string `gorm:"size:255;not null"`
	Unit string `gorm:"size:50"`

	MetricType appetite.MetricType `gorm:"type:varchar(20);not null"`

	GreenMax     float64 // maximum, directional
	AmberMax     float64
	GreenMin     float64 // minimum
	AmberMin     float64
	GreenLow     float64 // range
	GreenHigh    float64
	AmberLow     float64
	AmberHigh    float64
	LookbackDays int // directional rate window

	BreachRule     appetite.RuleKind `gorm:"type:varchar(20);not null"`
	RuleCount      int               // sustained, n_breaches
	RuleWindowDays int               // n_breaches

	AmberContact string `gorm:"size:255"` // webhook for amber escalations
	RedContact   string `gorm:"size:255"` // webhook for red; falls back to config

	// While set, the metric is live-fed: every valid observation of the
	// indicator is evaluated and threshold edits are rejected.
	SourceIndicatorID *uint
	SourceIndicator   *Indicator

	OwnerID uint // User.ID accountable for the limit
}

// CoverageLink ties an indicator to a tolerance metric it is expected to
// signal on. Read-only to the engine; the coverage grade is derived.
type CoverageLink struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID    uint
	ToleranceMetricID uint `gorm:"uniqueIndex:idx_coverage_pair"`
	IndicatorID       uint `gorm:"uniqueIndex:idx_coverage_pair"`

	Strength appetite.CoverageStrength `gorm:"type:varchar(20);not null"`
	Signal   appetite.SignalType       `gorm:"type:varchar(20);not null"`

	ToleranceMetric ToleranceMetric
	Indicator       Indicator
}
