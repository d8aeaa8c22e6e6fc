package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photobox/internal/server/handlers/album"
	"github.com/openmined/photobox/internal/server/handlers/api"
	"github.com/openmined/photobox/internal/server/middlewares"
	"github.com/openmined/photobox/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()
	// uploads are streamed part by part and never parsed into memory
	r.MaxMultipartMemory = 0

	albumH := album.New(svc.Album, svc.Pipeline, svc.UploadLog)

	createRate := config.HTTP.CreateRate
	if createRate == "" {
		createRate = DefaultCreateRate
	}
	createLimit, err := middlewares.RateLimiter(createRate)
	if err != nil {
		return nil, err
	}

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	if config.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS(middlewares.DefaultHSTSMaxAge))
	}
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	albums := r.Group("/album")
	{
		albums.GET("", albumH.List)
		albums.GET("/v2", albumH.ListV2)
		albums.POST("", createLimit, albumH.Create)
		albums.PUT("", albumH.Update)
		albums.DELETE("", albumH.Delete)

		albums.GET("/:name/photo", albumH.Photos)
		albums.POST("/:name/photo/upload", albumH.UploadOne)
		albums.POST("/:name/photo/upload-many", albumH.UploadMany)
		albums.GET("/:name/uploads", albumH.UploadHistory)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{
			Code:    api.CodeNotAllowed,
			Message: "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	// return a plaintext
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
