package models

import "time"

// Alert is the idempotent record of one escalation event. The composite
// unique index dedupes concurrent writers: whoever inserts the row owns
// the delivery, everyone else sees a conflict and moves on.
type Alert struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	OrganizationID uint   `gorm:"uniqueIndex:idx_alerts_dedup"`
	Event          string `gorm:"size:50;not null;uniqueIndex:idx_alerts_dedup"` // "breach_opened", "breach_escalated"
	SubjectType    string `gorm:"size:50;not null;uniqueIndex:idx_alerts_dedup"` // "breach"
	SubjectID      uint   `gorm:"uniqueIndex:idx_alerts_dedup"`

	Contact     string `gorm:"size:255"` // webhook the escalation went to
	Delivered   bool
	Error       string `gorm:"type:text"`
	DeliveredAt *time.Time
}
