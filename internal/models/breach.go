package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"minrisk/internal/appetite"
)

type BreachStatus string

const (
	BreachDetected      BreachStatus = "detected"
	BreachOpen          BreachStatus = "open"
	BreachAcknowledged  BreachStatus = "acknowledged"
	BreachInProgress    BreachStatus = "in_progress"
	BreachResolved      BreachStatus = "resolved"
	BreachBoardAccepted BreachStatus = "board_accepted"
)

// ActiveBreachStatuses are the states that count toward category and
// enterprise rollups and block a second breach on the same metric.
var ActiveBreachStatuses = []BreachStatus{
	BreachOpen, BreachAcknowledged, BreachInProgress,
}

// Breach records one tolerance violation episode on a metric. The partial
// unique index keeps at most one non-terminal breach per metric; openings
// go through an upsert against it.
type Breach struct {
	gorm.Model
	OrganizationID uint `gorm:"index"`

	ToleranceMetricID uint `gorm:"not null;index:idx_breaches_active,unique,where:status <> 'resolved' AND status <> 'board_accepted'"`
	ToleranceMetric   ToleranceMetric

	Ref      uuid.UUID     `gorm:"type:varchar(36);uniqueIndex"` // stable id for audit consumers
	Severity appetite.Zone `gorm:"type:varchar(10);not null"`
	Status   BreachStatus  `gorm:"type:varchar(20);not null"`

	ObservedValue float64
	Variance      float64 // distance beyond the violated boundary

	DetectedAt      time.Time `gorm:"not null"`
	LastEvaluatedAt time.Time `gorm:"not null"`
	EscalatedAt     *time.Time // set once when severity worsens amber -> red

	AcknowledgedBy  uint // User.ID
	RemediationPlan string `gorm:"type:text"`
	ResolutionNotes string `gorm:"type:text"`
	ResolvedAt      *time.Time
}

type OverrideStatus string

const (
	OverridePending  OverrideStatus = "pending"
	OverrideApproved OverrideStatus = "approved"
	OverrideRejected OverrideStatus = "rejected"
)

// ThresholdOverride is a board exception: adjusted bounds layered over a
// metric's permanent thresholds until ExpiresAt. The permanent definition
// is never mutated.
type ThresholdOverride struct {
	gorm.Model
	OrganizationID    uint `gorm:"index"`
	ToleranceMetricID uint `gorm:"not null;index"`
	BreachID          uint

	Status OverrideStatus `gorm:"type:varchar(10);not null"`

	GreenMax  float64
	AmberMax  float64
	GreenMin  float64
	AmberMin  float64
	GreenLow  float64
	GreenHigh float64
	AmberLow  float64
	AmberHigh float64

	Justification string    `gorm:"type:text"`
	RequestedBy   uint      // User.ID
	DecidedBy     uint      // User.ID, set on approve/reject
	ExpiresAt     time.Time `gorm:"not null"`
}
