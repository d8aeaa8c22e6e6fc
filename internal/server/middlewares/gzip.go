package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	excludedPaths = []string{
		"/healthz",
	}
	// upload replies are a single word, not worth wrapping the streamed request
	excludedPathRegexes = []string{
		`^/album/[^/]+/photo/upload`,
	}
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".ico", ".heic", ".heif",
		".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
	}
)

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedPathsRegexs(excludedPathRegexes),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
