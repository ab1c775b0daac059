package model

import "time"

// Alert severities, from least to most urgent.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert read states.
const (
	AlertStatusUnread    = "unread"
	AlertStatusRead      = "read"
	AlertStatusDismissed = "dismissed"
)

// Alert is a user-facing notification record, kept so the history stays
// queryable after the push notification itself has been delivered.
type Alert struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	PondID    int64      `gorm:"index;not null" json:"pond_id"`
	Type      string     `gorm:"size:64;not null" json:"alert_type"`
	Title     string     `gorm:"size:256;not null" json:"title"`
	Body      string     `gorm:"not null" json:"body"`
	Severity  string     `gorm:"size:16;not null" json:"severity"`
	Status    string     `gorm:"size:16;not null;default:unread" json:"status"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}
