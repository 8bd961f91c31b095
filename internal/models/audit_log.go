package models

import "gorm.io/datatypes"

// AuditLog records registry mutations and approval decisions.
type AuditLog struct {
	Base
	ActorID      string         `gorm:"index" json:"actor_id"`
	Action       string         `gorm:"not null" json:"action"`
	ResourceType string         `gorm:"not null" json:"resource_type"`
	ResourceID   string         `gorm:"index" json:"resource_id"`
	IPAddress    string         `json:"ip_address"`
	Changes      datatypes.JSON `json:"changes,omitempty"`
}
