package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ghprograms/programs-backend/internal/ssedata"
)

// AttachRequestContext seeds the per-request context containers used by the
// SSE fanout so services can stage events before the response commits.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ssedata.WithSSEData(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
