package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// image formats cameras and phones produce that the mime table may not know about
var imageTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".dng":  "image/x-adobe-dng",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
}

func DetectContentType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if mimeType, ok := imageTypes[ext]; ok {
		return mimeType
	} else if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
