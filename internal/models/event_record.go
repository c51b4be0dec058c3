package models

import "time"

// ProcessedEvent remembers a webhook event id so redeliveries are skipped.
type ProcessedEvent struct {
	EventID   string    `gorm:"primaryKey;type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the gorm tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
