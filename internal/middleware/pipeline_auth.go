package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/logger"
)

// PipelineActor is recorded as the acting user for sensor pipeline submissions.
const PipelineActor = "pipeline"

// APIKeyHeader carries the sensor pipeline credential.
const APIKeyHeader = "X-API-Key"

// PipelineAuthMiddleware admits the sensor pipeline by shared API key. The
// pipeline may submit readings but never holds the approver role.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	log := logger.Named("pipeline")
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}

		if subtle.ConstantTimeCompare([]byte(c.GetHeader(APIKeyHeader)), expected) != 1 {
			log.Warnw("rejected pipeline request",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}

		c.Set(ContextUserID, PipelineActor)
		c.Next()
	}
}
