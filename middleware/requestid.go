package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is both the header and the gin context key.
const RequestIDKey = "X-Request-ID"

// RequestID keeps the caller's request id or assigns a new one, and echoes it
// in the response. It does not call c.Next, so it can run inside a MiddlewareManager.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDKey)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(RequestIDKey, id)
		}
		c.Header(RequestIDKey, id)
		c.Set(RequestIDKey, id)
	}
}
