package models

import "gorm.io/gorm"

// Organization is the tenant root. Every governed row hangs off one
// organization and every engine query filters by it.
type Organization struct {
	gorm.Model
	Name     string `gorm:"size:255;not null;uniqueIndex"`
	Industry string `gorm:"size:100"`
	Notes    string `gorm:"type:text"`

	ContactName  string `gorm:"size:255"` // risk function contact
	ContactEmail string `gorm:"size:255"`
	ContactPhone string `gorm:"size:50"`

	Users []User
}
