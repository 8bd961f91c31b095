package models

import (
	"time"

	"assetmanager/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for tables keyed by UUIDv7
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every model for auto-migration (SQLite and tests).
func All() []interface{} {
	return []interface{}{
		&User{},
		&Asset{},
		&DataPoint{},
		&QueueEvent{},
		&AuditLog{},
	}
}
