package models

import "time"

// Asset is a named item whose valuation tracks the readings it receives.
// IDs are assigned densely from 0 by the registry store, never by the database.
type Asset struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Handle    string    `gorm:"not null;uniqueIndex" json:"handle"`
	Value     int64     `gorm:"type:bigint;not null;default:0" json:"value"`
	Exists    bool      `gorm:"not null;default:false" json:"exists"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Loaded explicitly by the registry store, ordered by position.
	DataPoints []DataPoint `gorm:"-" json:"data_points"`
}
