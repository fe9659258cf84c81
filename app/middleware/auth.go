package middleware

import (
	"net/http"
	"strings"

	"meshtrack/pkg/config"
	"meshtrack/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Auth validates the bearer token on mutating routes. With no API key
// configured the registry runs open, which is the usual development setup.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := config.GlobalConfig.Server.APIKey
		if expected == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token != expected {
			logger.WarnCtx(c.Request.Context(), "unauthorized request to %s", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
