package models

import "time"

// QueueEvent is the durable record of a DataPointQueued notification.
// Sequence is the logical marker handed to listeners; it only grows.
type QueueEvent struct {
	Sequence  uint64    `gorm:"primaryKey;autoIncrement" json:"sequence"`
	AssetID   uint64    `gorm:"not null;index" json:"asset_id"`
	Index     int       `gorm:"column:position;not null" json:"index"`
	Name      string    `gorm:"not null" json:"name"`
	Value     int64     `gorm:"type:bigint;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
