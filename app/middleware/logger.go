package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"meshtrack/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/pretty"
)

// RequestLogger tags every request with an id, propagates it through the
// context so downstream log lines correlate, and logs one summary line per
// request. Mutating requests get their JSON body compacted into the line.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		var bodyStr string
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			bodyStr = peekRequestBody(c)
		}

		start := time.Now()
		c.Next()

		if c.Writer.Status() == http.StatusNotFound {
			return
		}

		msg := "%3d | %13v | %15s | %s %s"
		args := []interface{}{
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			c.Request.RequestURI,
		}
		if bodyStr != "" {
			msg += " | %s"
			args = append(args, bodyStr)
		}
		logger.InfoCtx(ctx, msg, args...)
	}
}

func peekRequestBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	bodyBytes, _ := io.ReadAll(c.Request.Body)
	// Reading drains the body, hand the handler a fresh reader.
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return compactBody(bodyBytes)
}

func compactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	compressed := pretty.Ugly(body)
	if len(compressed) > 1000 {
		return string(compressed[:1000]) + "..."
	}
	return string(compressed)
}
