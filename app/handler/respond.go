package handler

import (
	"errors"
	"net/http"

	"meshtrack/internal/service"
	"meshtrack/pkg/logger"
	"meshtrack/pkg/retry"
	"meshtrack/pkg/store"

	"github.com/gin-gonic/gin"
)

// respondError maps service and store errors onto HTTP status codes. The
// store sentinels come through wrapped, so matching is by errors.Is/As.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicateKey), errors.Is(err, store.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &exhausted):
		logger.ErrorCtx(ctx, "storage unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry later"})
	default:
		logger.ErrorCtx(ctx, "request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
