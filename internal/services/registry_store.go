package services

import (
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/models"
	"assetmanager/internal/pagination"
	"assetmanager/internal/uuid"
)

// NewAsset is the structural input of CreateAsset. DataPoints are stored as
// supplied; AssetID and Index are assigned by the store.
type NewAsset struct {
	Name         string
	Handle       string
	InitialValue *int64
	DataPoints   []models.DataPoint
}

// RegistryStore owns the durable list of assets and their data points.
// It validates structure only; business rules live in the valuation engine.
type RegistryStore struct {
	db *gorm.DB

	// createMu keeps asset ids dense when registrations race in this process.
	// Across processes the same is done with a postgres advisory lock.
	createMu *sync.Mutex
}

// createLockKey names the transaction-scoped advisory lock taken around
// asset registration on postgres.
const createLockKey int64 = 0x61737365 // "asse"

// NewRegistryStore creates a RegistryStore on top of db.
func NewRegistryStore(db *gorm.DB) *RegistryStore {
	return &RegistryStore{db: db, createMu: &sync.Mutex{}}
}

// Transaction runs fn against a store bound to a single database transaction.
// fn must only use the store it is handed.
func (s *RegistryStore) Transaction(fn func(tx *RegistryStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&RegistryStore{db: tx, createMu: s.createMu})
	})
}

// CreateAsset stores a new asset and its initial data points and returns the
// assigned id. Ids start at 0 and follow the number of registered assets.
func (s *RegistryStore) CreateAsset(in NewAsset) (uint64, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "asset name is required")
	}
	for i, dp := range in.DataPoints {
		if strings.TrimSpace(dp.Name) == "" {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "data point name is required")
		}
		if dp.Timestamp.IsZero() {
			in.DataPoints[i].Timestamp = time.Now().UTC()
		}
	}

	handle := strings.TrimSpace(in.Handle)
	if handle == "" {
		handle = uuid.New()
	}

	var value int64
	if in.InitialValue != nil {
		value = *in.InitialValue
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	var id uint64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if isPostgres(tx) {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", createLockKey).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		var count int64
		if err := tx.Model(&models.Asset{}).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		id = uint64(count)

		var taken int64
		if err := tx.Model(&models.Asset{}).Where("handle = ?", handle).Count(&taken).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if taken > 0 {
			return apperrors.ErrDuplicateHandle
		}

		asset := &models.Asset{
			ID:     id,
			Name:   name,
			Handle: handle,
			Value:  value,
			Exists: true,
		}
		if err := tx.Create(asset).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if len(in.DataPoints) == 0 {
			return nil
		}

		rows := make([]models.DataPoint, len(in.DataPoints))
		for i, dp := range in.DataPoints {
			dp.ID = ""
			dp.AssetID = id
			dp.Index = i
			dp.Name = strings.TrimSpace(dp.Name)
			if dp.Resolution == "" {
				dp.Resolution = defaultResolution(dp.NeedsApproval)
			}
			rows[i] = dp
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// NextAssetID returns the id the next registration will receive, which is
// also the number of registered assets.
func (s *RegistryStore) NextAssetID() (uint64, error) {
	var count int64
	if err := s.db.Model(&models.Asset{}).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return uint64(count), nil
}

// GetAsset returns an asset with its data points in insertion order.
func (s *RegistryStore) GetAsset(id uint64) (*models.Asset, error) {
	asset, err := s.findAsset(id)
	if err != nil {
		return nil, err
	}

	var points []models.DataPoint
	if err := s.db.Where("asset_id = ?", id).Order("position ASC").Find(&points).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if points == nil {
		points = []models.DataPoint{}
	}
	asset.DataPoints = points

	return asset, nil
}

// AppendDataPoint adds dp to the end of the asset's sequence and returns its index.
func (s *RegistryStore) AppendDataPoint(assetID uint64, dp *models.DataPoint) (int, error) {
	if strings.TrimSpace(dp.Name) == "" {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "data point name is required")
	}
	if _, err := s.findAsset(assetID); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.Model(&models.DataPoint{}).Where("asset_id = ?", assetID).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	dp.AssetID = assetID
	dp.Index = int(count)
	if dp.Resolution == "" {
		dp.Resolution = defaultResolution(dp.NeedsApproval)
	}
	if dp.Timestamp.IsZero() {
		dp.Timestamp = time.Now().UTC()
	}

	if err := s.db.Create(dp).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return dp.Index, nil
}

// GetDataPoint returns the data point at index within the asset.
func (s *RegistryStore) GetDataPoint(assetID uint64, index int) (*models.DataPoint, error) {
	if index < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "data point index must not be negative")
	}
	if _, err := s.findAsset(assetID); err != nil {
		return nil, err
	}

	var dp models.DataPoint
	if err := s.db.Where("asset_id = ? AND position = ?", assetID, index).First(&dp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDataPointNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &dp, nil
}

// SetDataPointApproval flips the needs-approval flag in place.
func (s *RegistryStore) SetDataPointApproval(assetID uint64, index int, needsApproval bool) error {
	dp, err := s.GetDataPoint(assetID, index)
	if err != nil {
		return err
	}
	if err := s.db.Model(&models.DataPoint{}).Where("id = ?", dp.ID).Update("needs_approval", needsApproval).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ResolveDataPoint clears the needs-approval flag and records how and by whom
// the reading was resolved.
func (s *RegistryStore) ResolveDataPoint(assetID uint64, index int, resolution models.Resolution, actorID string, at time.Time) (*models.DataPoint, error) {
	dp, err := s.GetDataPoint(assetID, index)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"needs_approval": false,
		"resolution":     resolution,
		"resolved_by":    actorID,
		"resolved_at":    at,
	}
	if err := s.db.Model(&models.DataPoint{}).Where("id = ?", dp.ID).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	dp.NeedsApproval = false
	dp.Resolution = resolution
	dp.ResolvedBy = actorID
	dp.ResolvedAt = &at
	return dp, nil
}

// SetAssetValue replaces the asset valuation in place.
func (s *RegistryStore) SetAssetValue(assetID uint64, value int64) error {
	if _, err := s.findAsset(assetID); err != nil {
		return err
	}
	if err := s.db.Model(&models.Asset{}).Where("id = ?", assetID).Update("value", value).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// LatestDataPoint returns the most recent reading of a channel in any state,
// or nil when the channel has none.
func (s *RegistryStore) LatestDataPoint(assetID uint64, name string) (*models.DataPoint, error) {
	return s.latest(s.db.Where("asset_id = ? AND name = ?", assetID, name))
}

// LastDataPoint returns the asset's most recently appended reading, or nil.
func (s *RegistryStore) LastDataPoint(assetID uint64) (*models.DataPoint, error) {
	return s.latest(s.db.Where("asset_id = ?", assetID))
}

// ListPending returns readings awaiting approval across all assets, oldest first.
func (s *RegistryStore) ListPending(page pagination.PageRequest) (*pagination.PageResponse[models.DataPoint], error) {
	page.Defaults()

	var total int64
	base := s.db.Model(&models.DataPoint{}).Where("needs_approval = ?", true).Session(&gorm.Session{})
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var points []models.DataPoint
	if err := base.Order("recorded_at ASC").Order("asset_id ASC").Order("position ASC").
		Scopes(pagination.Paginate(page)).Find(&points).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(points, page.Page, page.PageSize, total)
	return &resp, nil
}

// CountPending returns how many readings await approval, and how many of
// them were submitted before staleBefore.
func (s *RegistryStore) CountPending(staleBefore time.Time) (pending, stale int64, err error) {
	if err := s.db.Model(&models.DataPoint{}).Where("needs_approval = ?", true).Count(&pending).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.DataPoint{}).
		Where("needs_approval = ? AND recorded_at < ?", true, staleBefore).
		Count(&stale).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return pending, stale, nil
}

// RecordQueueEvent persists a queued notification and assigns its sequence.
func (s *RegistryStore) RecordQueueEvent(event *models.QueueEvent) error {
	if err := s.db.Create(event).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ListQueueEvents returns queued notifications with a sequence greater than after.
func (s *RegistryStore) ListQueueEvents(after uint64, page pagination.PageRequest) (*pagination.PageResponse[models.QueueEvent], error) {
	page.Defaults()

	var total int64
	base := s.db.Model(&models.QueueEvent{}).Where("sequence > ?", after).Session(&gorm.Session{})
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var events []models.QueueEvent
	if err := base.Order("sequence ASC").Scopes(pagination.Paginate(page)).Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(events, page.Page, page.PageSize, total)
	return &resp, nil
}

// findAsset loads an asset row without its data points.
func (s *RegistryStore) findAsset(id uint64) (*models.Asset, error) {
	return s.loadAsset(s.db, id)
}

// findAssetForUpdate loads an asset and, on postgres, holds its row lock
// until the surrounding transaction ends so other instances serialize their
// appends and resolutions for the same asset.
func (s *RegistryStore) findAssetForUpdate(id uint64) (*models.Asset, error) {
	return s.loadAsset(forUpdate(s.db), id)
}

// forUpdate adds FOR UPDATE on postgres. SQLite has no row locks and
// serializes writers on its own.
func forUpdate(query *gorm.DB) *gorm.DB {
	if isPostgres(query) {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (s *RegistryStore) loadAsset(query *gorm.DB, id uint64) (*models.Asset, error) {
	var asset models.Asset
	if err := query.Where("id = ?", id).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !asset.Exists {
		return nil, apperrors.ErrAssetNotFound
	}
	return &asset, nil
}

func (s *RegistryStore) latest(query *gorm.DB) (*models.DataPoint, error) {
	var points []models.DataPoint
	if err := query.Order("position DESC").Limit(1).Find(&points).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &points[0], nil
}

func defaultResolution(needsApproval bool) models.Resolution {
	if needsApproval {
		return models.ResolutionPending
	}
	return models.ResolutionInitial
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
