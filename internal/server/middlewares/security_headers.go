package middlewares

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds the response headers every API reply carries, TLS or not
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		// API responses are never framed
		c.Header("X-Frame-Options", "DENY")

		// Control referrer information
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}
