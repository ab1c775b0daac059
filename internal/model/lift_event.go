package model

import "time"

// LiftEvent is the historical log of lift-net status reports (cold table).
// The live status lives in the in-memory store; every accepted device
// write is archived here so past operations stay inspectable.
type LiftEvent struct {
	ID         int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	PondID     int64     `gorm:"not null;index" json:"pondId"`
	Status     int       `gorm:"not null" json:"status"`
	Message    string    `gorm:"not null" json:"message"`
	Source     string    `gorm:"size:32;not null" json:"source"`
	ObservedAt time.Time `gorm:"not null;index" json:"observedAt"`
}
