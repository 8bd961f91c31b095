package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/models"
	"assetmanager/internal/pagination"
	"assetmanager/internal/services"
)

// AssetHandler serves the registry and approval endpoints.
type AssetHandler struct {
	assetService services.AssetServicer
	auditService services.AuditServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService services.AssetServicer, auditService services.AuditServicer) *AssetHandler {
	return &AssetHandler{assetService: assetService, auditService: auditService}
}

// InitialDataPointRequest is one reading supplied at registration.
type InitialDataPointRequest struct {
	Name          string `json:"name" binding:"required,channel_name"`
	Value         *int64 `json:"value" binding:"required"`
	IdealValue    *int64 `json:"ideal_value"`
	ImpactRule    string `json:"impact_rule" binding:"impact_rule"`
	NeedsApproval bool   `json:"needs_approval"`
}

// RegisterAssetRequest represents the request payload for registering an asset.
type RegisterAssetRequest struct {
	Name         string                    `json:"name" binding:"required,min=1,max=200"`
	Handle       string                    `json:"handle" binding:"omitempty,asset_handle"`
	InitialValue *int64                    `json:"initial_value"`
	DataPoints   []InitialDataPointRequest `json:"data_points" binding:"omitempty,max=1000,dive"`
}

// AddDataPointRequest represents a new reading for an existing asset.
type AddDataPointRequest struct {
	Name  string `json:"name" binding:"required,channel_name"`
	Value *int64 `json:"value" binding:"required"`
}

// DataPointResponse represents a reading in the response.
type DataPointResponse struct {
	AssetID       uint64            `json:"asset_id"`
	Index         int               `json:"index"`
	Name          string            `json:"name"`
	Value         int64             `json:"value"`
	IdealValue    *int64            `json:"ideal_value,omitempty"`
	ImpactRule    string            `json:"impact_rule,omitempty"`
	Baseline      int64             `json:"baseline"`
	Timestamp     time.Time         `json:"timestamp"`
	NeedsApproval bool              `json:"needs_approval"`
	Resolution    models.Resolution `json:"resolution"`
	ResolvedBy    string            `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
}

// AssetResponse represents an asset and its readings in the response.
type AssetResponse struct {
	ID         uint64              `json:"id"`
	Name       string              `json:"name"`
	Handle     string              `json:"handle"`
	Value      int64               `json:"value"`
	Exists     bool                `json:"exists"`
	DataPoints []DataPointResponse `json:"data_points"`
}

func toDataPointResponse(dp models.DataPoint) DataPointResponse {
	return DataPointResponse{
		AssetID:       dp.AssetID,
		Index:         dp.Index,
		Name:          dp.Name,
		Value:         dp.Value,
		IdealValue:    dp.IdealValue,
		ImpactRule:    dp.ImpactRule,
		Baseline:      dp.Baseline,
		Timestamp:     dp.Timestamp,
		NeedsApproval: dp.NeedsApproval,
		Resolution:    dp.Resolution,
		ResolvedBy:    dp.ResolvedBy,
		ResolvedAt:    dp.ResolvedAt,
	}
}

func toAssetResponse(asset *models.Asset) AssetResponse {
	return AssetResponse{
		ID:     asset.ID,
		Name:   asset.Name,
		Handle: asset.Handle,
		Value:  asset.Value,
		Exists: asset.Exists,
		DataPoints: lo.Map(asset.DataPoints, func(dp models.DataPoint, _ int) DataPointResponse {
			return toDataPointResponse(dp)
		}),
	}
}

// RegisterAsset handles asset registration
// @Summary     Register an asset
// @Description Register a new asset with optional initial readings. Initial readings are recorded as applied unless marked as needing approval.
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RegisterAssetRequest true "Asset details"
// @Success     201 {object} AssetResponse "Asset registered"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Handle already taken"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets [post]
func (h *AssetHandler) RegisterAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RegisterAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	asset, err := h.assetService.RegisterAsset(services.RegisterAssetInput{
		Name:         req.Name,
		Handle:       req.Handle,
		InitialValue: req.InitialValue,
		DataPoints: lo.Map(req.DataPoints, func(dp InitialDataPointRequest, _ int) services.InitialDataPoint {
			return services.InitialDataPoint{
				Name:          dp.Name,
				Value:         *dp.Value,
				IdealValue:    dp.IdealValue,
				ImpactRule:    dp.ImpactRule,
				NeedsApproval: dp.NeedsApproval,
			}
		}),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REGISTER_ASSET", "asset", strconv.FormatUint(asset.ID, 10), c.ClientIP(),
		map[string]interface{}{"name": asset.Name, "data_points": len(asset.DataPoints)})

	c.JSON(http.StatusCreated, toAssetResponse(asset))
}

// GetAsset returns an asset with all of its readings
// @Summary     Get asset
// @Description Get an asset's valuation and its readings in insertion order
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Asset ID"
// @Success     200 {object} AssetResponse "Asset details"
// @Failure     400 {object} ErrorResponse "Invalid asset ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	assetID, err := parseAssetID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.GetAsset(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAssetResponse(asset))
}

// NextAssetID returns the id the next registration will receive
// @Summary     Next asset ID
// @Description Get the id that will be assigned to the next registered asset
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]uint64 "Next asset id"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/next-id [get]
func (h *AssetHandler) NextAssetID(c *gin.Context) {
	next, err := h.assetService.NextAssetID()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"next_asset_id": next})
}

// AddDataPoint records a new reading
// @Summary     Add a data point
// @Description Record a reading for an asset. Readings within the deviation threshold adjust the valuation immediately; the rest are queued for approval.
// @Tags        data-points
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Asset ID"
// @Param       request body AddDataPointRequest true "Reading"
// @Success     201 {object} DataPointResponse "Reading recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     422 {object} ErrorResponse "Asset value would leave the supported range"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id}/data-points [post]
func (h *AssetHandler) AddDataPoint(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	assetID, err := parseAssetID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddDataPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	dp, err := h.assetService.AddDataPoint(assetID, req.Name, *req.Value)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_DATA_POINT", "asset", strconv.FormatUint(assetID, 10), c.ClientIP(),
		map[string]interface{}{
			"index":          dp.Index,
			"name":           dp.Name,
			"value":          dp.Value,
			"needs_approval": dp.NeedsApproval,
		})

	c.JSON(http.StatusCreated, toDataPointResponse(*dp))
}

// GetDataPoint returns one reading
// @Summary     Get a data point
// @Description Get a reading by its index within the asset
// @Tags        data-points
// @Produce     json
// @Security    BearerAuth
// @Param       id    path int true "Asset ID"
// @Param       index path int true "Data point index"
// @Success     200 {object} DataPointResponse "Reading"
// @Failure     400 {object} ErrorResponse "Invalid asset ID or index"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Asset or data point not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id}/data-points/{index} [get]
func (h *AssetHandler) GetDataPoint(c *gin.Context) {
	assetID, err := parseAssetID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	index, err := parseIndex(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	dp, err := h.assetService.GetDataPoint(assetID, index)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDataPointResponse(*dp))
}

// ApproveDataPoint applies a pending reading
// @Summary     Approve a data point
// @Description Apply a reading that is awaiting approval to the asset valuation
// @Tags        approvals
// @Produce     json
// @Security    BearerAuth
// @Param       id    path int true "Asset ID"
// @Param       index path int true "Data point index"
// @Success     200 {object} DataPointResponse "Approved reading"
// @Failure     400 {object} ErrorResponse "Invalid asset ID or index"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Approver role required"
// @Failure     404 {object} ErrorResponse "Asset or data point not found"
// @Failure     409 {object} ErrorResponse "Data point is not pending"
// @Failure     422 {object} ErrorResponse "Asset value would leave the supported range"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id}/data-points/{index}/approve [post]
func (h *AssetHandler) ApproveDataPoint(c *gin.Context) {
	h.resolve(c, "APPROVE_DATA_POINT", h.assetService.ApproveDataPoint)
}

// RejectDataPoint discards a pending reading
// @Summary     Reject a data point
// @Description Discard a reading that is awaiting approval without changing the valuation
// @Tags        approvals
// @Produce     json
// @Security    BearerAuth
// @Param       id    path int true "Asset ID"
// @Param       index path int true "Data point index"
// @Success     200 {object} DataPointResponse "Rejected reading"
// @Failure     400 {object} ErrorResponse "Invalid asset ID or index"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Approver role required"
// @Failure     404 {object} ErrorResponse "Asset or data point not found"
// @Failure     409 {object} ErrorResponse "Data point is not pending"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets/{id}/data-points/{index}/reject [post]
func (h *AssetHandler) RejectDataPoint(c *gin.Context) {
	h.resolve(c, "REJECT_DATA_POINT", h.assetService.RejectDataPoint)
}

func (h *AssetHandler) resolve(c *gin.Context, action string, fn func(assetID uint64, index int, actorID string) (*models.DataPoint, error)) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	assetID, err := parseAssetID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	index, err := parseIndex(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	dp, err := fn(assetID, index, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "asset", strconv.FormatUint(assetID, 10), c.ClientIP(),
		map[string]interface{}{"index": index, "resolution": dp.Resolution})

	c.JSON(http.StatusOK, toDataPointResponse(*dp))
}

// ListPending returns readings awaiting approval
// @Summary     List pending approvals
// @Description Get a paginated list of readings awaiting approval, oldest first
// @Tags        approvals
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[DataPointResponse] "Pending readings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Approver role required"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /approvals [get]
func (h *AssetHandler) ListPending(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.assetService.ListPending(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.PageResponse[DataPointResponse]{
		Data: lo.Map(result.Data, func(dp models.DataPoint, _ int) DataPointResponse {
			return toDataPointResponse(dp)
		}),
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}
