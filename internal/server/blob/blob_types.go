package blob

import (
	"context"
	"io"
	"iter"
	"time"
)

const (
	// DefaultBlockSize is the size of each staged block, the final block may be smaller
	DefaultBlockSize = int64(2 * 1024 * 1024)

	// DefaultMaxConcurrency is the number of blocks in flight per blob
	DefaultMaxConcurrency = 5
)

// ObjectStore is the capability set the album service and the upload pipeline depend on.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// CreateContainer creates the container if it does not exist yet
	CreateContainer(ctx context.Context, name string) error

	// ListContainers lazily lists all containers
	ListContainers(ctx context.Context) iter.Seq2[*ContainerItem, error]

	// ListBlobs lazily lists all blobs within a container
	ListBlobs(ctx context.Context, container string) iter.Seq2[*BlobItem, error]

	// UploadBlob streams params.Body to a single blob using parallel block transfers
	UploadBlob(ctx context.Context, params *UploadBlobParams) (*CommitInfo, error)
}

// ===================================================================================================

type ContainerItem struct {
	Name       string              `json:"name"`
	Properties ContainerProperties `json:"properties"`
}

type ContainerProperties struct {
	LastModified time.Time `json:"lastModified"`
}

type BlobItem struct {
	Name          string    `json:"name"`
	ETag          string    `json:"etag"`
	ContentLength int64     `json:"contentLength"`
	LastModified  time.Time `json:"lastModified"`
}

// ===================================================================================================

type UploadOptions struct {
	BlockSize      int64
	MaxConcurrency int
	Overwrite      bool
}

// DefaultUploadOptions returns 2 MiB blocks, 5 blocks in flight and overwrite enabled
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		BlockSize:      DefaultBlockSize,
		MaxConcurrency: DefaultMaxConcurrency,
		Overwrite:      true,
	}
}

// withDefaults fills zero values and raises the block size to the backend minimum
func (o UploadOptions) withDefaults(minBlockSize int64) UploadOptions {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.BlockSize < minBlockSize {
		o.BlockSize = minBlockSize
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	return o
}

type UploadBlobParams struct {
	Container string
	Name      string
	Body      io.Reader
	Options   UploadOptions
}

// CommitInfo describes a committed blob
type CommitInfo struct {
	Container    string
	Name         string
	Version      string
	ETag         string
	Size         int64
	Blocks       int
	LastModified time.Time
}
