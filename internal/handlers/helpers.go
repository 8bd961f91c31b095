package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/middleware"
)

// getUserID extracts the authenticated caller from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parseAssetID parses the asset id path parameter. Asset ids start at 0.
func parseAssetID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid asset id")
	}
	return id, nil
}

// parseIndex parses the data point index path parameter.
func parseIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid data point index")
	}
	if index < 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "data point index must not be negative")
	}
	return index, nil
}

// respondWithError writes the JSON error envelope for err.
func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
