package blob

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

var (
	ErrInvalidKey           = errors.New("invalid key")
	ErrInvalidContainerName = errors.New("invalid container name")
	ErrContainerNotFound    = errors.New("container not found")
	ErrBlobExists           = errors.New("blob already exists")
)

var (
	// Match: starts with one or more / OR contains \ OR contains ..
	regexForbiddenPatterns = regexp.MustCompile(`^/+|\\+|\.\.`)

	regexContainerName = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

const maxContainerNameLength = 255

// Validate a key for S3 and local file system compatibility
func ValidateKey(key string) bool {
	// S3 keys must be between 1 and 1024 bytes long
	if len(key) == 0 || len(key) > 1024 {
		return false
	} else if key == "." || key == ".." {
		return false
	}

	// Check for forbidden patterns using regex
	if regexForbiddenPatterns.MatchString(key) {
		return false
	}

	// S3 keys must be valid UTF-8 strings
	return utf8.ValidString(key)
}

// ValidateContainerName accepts letters, digits and dashes
func ValidateContainerName(name string) bool {
	if len(name) == 0 || len(name) > maxContainerNameLength {
		return false
	}
	return regexContainerName.MatchString(name)
}
