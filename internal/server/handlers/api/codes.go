package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST"    // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"       // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"     // internal server error
	CodeNotFound       = "E_NOT_FOUND"          // no route matched
	CodeNotAllowed     = "E_METHOD_NOT_ALLOWED" // route exists for another method

	// Album errors
	CodeAlbumCreateFailed = "E_ALBUM_CREATE_FAILED" // the album could not be created in the store.
	CodeAlbumListFailed   = "E_ALBUM_LIST_FAILED"   // a failure while listing albums.
	CodeAlbumNotFound     = "E_ALBUM_NOT_FOUND"     // the album does not exist.

	// Blob errors
	CodeBlobListFailed = "E_BLOB_LIST_OPERATION_FAILED" // a failure during the operation to list photos.
	CodeBlobPutFailed  = "E_BLOB_PUT_OPERATION_FAILED"  // a failure during the operation to upload a photo.

	// Upload errors
	CodeNoFilePart        = "E_NO_FILE_PART"        // the multipart body carries no file under the expected field.
	CodeNotMultipart      = "E_NOT_MULTIPART"       // the request body is not multipart/form-data.
	CodeUploadCancelled   = "E_UPLOAD_CANCELLED"    // the upload was cancelled before it committed.
	CodeUploadLogDisabled = "E_UPLOAD_LOG_DISABLED" // the server keeps no upload history.
)
