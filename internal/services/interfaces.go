package services

import (
	"assetmanager/internal/models"
	"assetmanager/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, name string, role models.Role) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	Authenticate(email, password string) (*models.User, error)
}

// InitialDataPoint is a reading supplied at asset registration.
type InitialDataPoint struct {
	Name          string
	Value         int64
	IdealValue    *int64
	ImpactRule    string
	NeedsApproval bool
}

// RegisterAssetInput carries everything registerAsset accepts.
type RegisterAssetInput struct {
	Name         string
	Handle       string
	InitialValue *int64
	DataPoints   []InitialDataPoint
}

// AssetServicer defines the registry and approval operations exposed to callers.
type AssetServicer interface {
	RegisterAsset(input RegisterAssetInput) (*models.Asset, error)
	GetAsset(assetID uint64) (*models.Asset, error)
	NextAssetID() (uint64, error)
	AddDataPoint(assetID uint64, name string, value int64) (*models.DataPoint, error)
	GetDataPoint(assetID uint64, index int) (*models.DataPoint, error)
	ApproveDataPoint(assetID uint64, index int, actorID string) (*models.DataPoint, error)
	RejectDataPoint(assetID uint64, index int, actorID string) (*models.DataPoint, error)
	ListPending(page pagination.PageRequest) (*pagination.PageResponse[models.DataPoint], error)
	ListQueueEvents(after uint64, page pagination.PageRequest) (*pagination.PageResponse[models.QueueEvent], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actorID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
