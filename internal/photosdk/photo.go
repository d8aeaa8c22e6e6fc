package photosdk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/imroc/req/v3"
)

const (
	pathPhotos     = "/album/{name}/photo"
	pathUpload     = "/album/{name}/photo/upload"
	pathUploadMany = "/album/{name}/photo/upload-many"

	fieldFile  = "file"
	fieldFiles = "files"

	progressInterval = 500 * time.Millisecond
)

type PhotoAPI struct {
	client *req.Client
}

func newPhotoAPI(client *req.Client) *PhotoAPI {
	return &PhotoAPI{
		client: client,
	}
}

// List lists the photos of an album. A non-empty pattern is a glob on photo names.
func (p *PhotoAPI) List(ctx context.Context, albumName, pattern string) (photos []*Photo, err error) {
	if albumName == "" {
		return nil, ErrNoAlbum
	}

	r := p.client.R().
		SetContext(ctx).
		SetPathParam("name", albumName).
		SetSuccessResult(&photos)
	if pattern != "" {
		r.SetQueryParam("pattern", pattern)
	}

	resp, err := r.Get(pathPhotos)
	if err := handleAPIError(resp, err, "photo list"); err != nil {
		return nil, err
	}

	return photos, nil
}

// Upload streams a single file into an album
func (p *PhotoAPI) Upload(ctx context.Context, params *UploadParams) (*UploadResponse, error) {
	if params.Album == "" {
		return nil, ErrNoAlbum
	}

	upload, err := fileUpload(fieldFile, params.FilePath, params.FileName)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("name", params.Album).
		SetRetryCount(0).
		SetFileUpload(upload).
		SetUploadCallbackWithInterval(uploadCallback(params.Callback), progressInterval).
		Post(pathUpload)

	if err := handleAPIError(resp, err, "photo upload"); err != nil {
		return nil, err
	}

	return &UploadResponse{
		Status: resp.String(),
		Files:  1,
		Bytes:  upload.FileSize,
	}, nil
}

// UploadMany streams several files into an album in one request.
// The server stops at the first failed file, files committed before it stay.
func (p *PhotoAPI) UploadMany(ctx context.Context, params *UploadManyParams) (*UploadResponse, error) {
	if params.Album == "" {
		return nil, ErrNoAlbum
	}
	if len(params.FilePaths) == 0 {
		return nil, ErrNoFiles
	}

	uploads := make([]req.FileUpload, 0, len(params.FilePaths))
	var total int64
	for _, path := range params.FilePaths {
		upload, err := fileUpload(fieldFiles, path, "")
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
		total += upload.FileSize
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("name", params.Album).
		SetRetryCount(0).
		SetFileUpload(uploads...).
		SetUploadCallbackWithInterval(uploadCallback(params.Callback), progressInterval).
		Post(pathUploadMany)

	if err := handleAPIError(resp, err, "photo upload many"); err != nil {
		return nil, err
	}

	return &UploadResponse{
		Status: resp.String(),
		Files:  len(uploads),
		Bytes:  total,
	}, nil
}

func fileUpload(field, path, name string) (req.FileUpload, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return req.FileUpload{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return req.FileUpload{}, fmt.Errorf("stat file: %w", err)
	} else if info.IsDir() {
		return req.FileUpload{}, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	if name == "" {
		name = filepath.Base(path)
	}

	return req.FileUpload{
		ParamName: field,
		FileName:  name,
		FileSize:  info.Size(),
		GetFileContent: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func uploadCallback(cb ProgressCallback) func(info req.UploadInfo) {
	return func(info req.UploadInfo) {
		if cb == nil {
			return
		}
		cb(info.FileName, info.UploadedSize, info.FileSize)
	}
}
