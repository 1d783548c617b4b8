package models

import (
	"time"

	"gorm.io/gorm"
)

type ObservationQuality string

const (
	QualityValid   ObservationQuality = "valid"
	QualitySuspect ObservationQuality = "suspect"
)

// Indicator is a key risk indicator: a named measurable feeding tolerance
// metrics and coverage links.
type Indicator struct {
	gorm.Model
	OrganizationID uint `gorm:"index"`
	Organization   Organization

	Name        string `gorm:"size:255;not null"`
	Unit        string `gorm:"size:50"` // "%", "count", "hours"
	Description string `gorm:"type:text"`
}

// Observation is one reading of an indicator. The log is append-only:
// rows are never updated or deleted, corrections arrive as new readings.
// Suspect-quality rows are kept but excluded from evaluation.
type Observation struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint `gorm:"index"`
	IndicatorID    uint `gorm:"index:idx_observations_series"`

	Value      float64            `gorm:"not null"`
	ObservedAt time.Time          `gorm:"not null;index:idx_observations_series"`
	Quality    ObservationQuality `gorm:"type:varchar(10);not null"`
	RecordedBy uint               // User.ID
}
