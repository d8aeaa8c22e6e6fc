package middlewares

import (
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

const DefaultHSTSMaxAge = 365 * 24 * time.Hour

// HSTS pins browsers to https and redirects plain http requests. Only installed when serving TLS.
// Frame and sniffing headers come from SecurityHeaders.
func HSTS(maxAge time.Duration) gin.HandlerFunc {
	if maxAge <= 0 {
		maxAge = DefaultHSTSMaxAge
	}
	return secure.New(secure.Config{
		SSLRedirect:          true,
		STSSeconds:           int64(maxAge / time.Second),
		STSIncludeSubdomains: true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}
