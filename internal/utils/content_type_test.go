package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType("taj.jpg"))
	assert.Equal(t, "image/jpeg", DetectContentType("TAJ.JPG"))
	assert.Equal(t, "image/png", DetectContentType("India-tour-2020/fort.png"))
	assert.Equal(t, "image/heic", DetectContentType("IMG_0001.HEIC"))
	assert.Equal(t, "application/octet-stream", DetectContentType("README"))
}
