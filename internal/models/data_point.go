package models

import (
	"time"

	"assetmanager/internal/uuid"

	"gorm.io/gorm"
)

// Resolution records how a data point reached its current state.
type Resolution string

const (
	ResolutionInitial     Resolution = "initial"
	ResolutionAutoApplied Resolution = "auto_applied"
	ResolutionPending     Resolution = "pending"
	ResolutionApproved    Resolution = "approved"
	ResolutionRejected    Resolution = "rejected"
)

// DataPoint is one reading of a measurement channel on an asset.
// Rows are append-only; approval and rejection only flip the flag and the
// resolution in place.
type DataPoint struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"-"`
	AssetID       uint64     `gorm:"not null;uniqueIndex:idx_data_points_asset_position,priority:1" json:"asset_id"`
	Index         int        `gorm:"column:position;not null;uniqueIndex:idx_data_points_asset_position,priority:2" json:"index"`
	Name          string     `gorm:"not null;index" json:"name"`
	Value         int64      `gorm:"type:bigint;not null" json:"value"`
	IdealValue    *int64     `gorm:"type:bigint" json:"ideal_value,omitempty"`
	ImpactRule    string     `json:"impact_rule,omitempty"`
	Baseline      int64      `gorm:"type:bigint;not null;default:0" json:"baseline"`
	Timestamp     time.Time  `gorm:"column:recorded_at;not null" json:"timestamp"`
	NeedsApproval bool       `gorm:"not null;default:false;index" json:"needs_approval"`
	Resolution    Resolution `gorm:"not null" json:"resolution"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (d *DataPoint) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New()
	}
	return nil
}

// IsPending reports whether the reading still awaits an approval decision.
func (d *DataPoint) IsPending() bool {
	return d.NeedsApproval
}
