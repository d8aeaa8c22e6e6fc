package photosdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL  = errors.New("sdk: server url missing")
	ErrNoAlbum      = errors.New("sdk: album name missing")
	ErrNoFiles      = errors.New("sdk: no files to upload")
	ErrFileNotFound = errors.New("sdk: file not found")
)

const (
	CodeInvalidRequest  = "E_INVALID_REQUEST"
	CodeRateLimited     = "E_RATE_LIMITED"
	CodeAlbumNotFound   = "E_ALBUM_NOT_FOUND"
	CodeNoFilePart      = "E_NO_FILE_PART"
	CodeNotMultipart    = "E_NOT_MULTIPART"
	CodeUploadCancelled = "E_UPLOAD_CANCELLED"
	CodeBlobPutFailed   = "E_BLOB_PUT_OPERATION_FAILED"
)

// APIError is the JSON error body returned by the server
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// IsCode reports whether err carries an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok && err.Code != "" {
			return fmt.Errorf("%s %w", operation, err)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Status)
	}

	return nil
}
