package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithError records err on the context for the request logger and writes a JSON error body.
// Client errors carry the error text, server errors only the status text.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: message,
	})
}
