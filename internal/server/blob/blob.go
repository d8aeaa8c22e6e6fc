package blob

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// BlobService is the ObjectStore used by the server. It owns the storage backend and
// drives uploads through the block uploader.
type BlobService struct {
	backend  Backend
	uploader *blockUploader
}

// NewBlobService creates the backend selected by cfg.Driver
func NewBlobService(cfg *Config) (*BlobService, error) {
	var backend Backend
	switch cfg.Driver {
	case DriverMemory:
		backend = NewMemoryBackend()
	case DriverS3, "":
		s3Backend, err := NewS3BackendWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		backend = s3Backend
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
	return NewBlobServiceWithBackend(backend), nil
}

// NewBlobServiceWithBackend wraps an existing backend
func NewBlobServiceWithBackend(backend Backend) *BlobService {
	return &BlobService{
		backend:  backend,
		uploader: newBlockUploader(backend),
	}
}

func (b *BlobService) Start(ctx context.Context) error {
	slog.Debug("blob service start")
	if err := b.backend.Check(ctx); err != nil {
		return fmt.Errorf("blob backend check: %w", err)
	}
	return nil
}

// Shutdown releases any resources used by the service
func (b *BlobService) Shutdown(ctx context.Context) error {
	slog.Debug("blob service shutdown")
	return nil
}

// Backend returns the underlying blob backend instance
func (b *BlobService) Backend() Backend {
	return b.backend
}

func (b *BlobService) CreateContainer(ctx context.Context, name string) error {
	if !ValidateContainerName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidContainerName, name)
	}
	return b.backend.CreateContainer(ctx, name)
}

func (b *BlobService) ListContainers(ctx context.Context) iter.Seq2[*ContainerItem, error] {
	return b.backend.ListContainers(ctx)
}

func (b *BlobService) ListBlobs(ctx context.Context, container string) iter.Seq2[*BlobItem, error] {
	return b.backend.ListBlobs(ctx, container)
}

func (b *BlobService) UploadBlob(ctx context.Context, params *UploadBlobParams) (*CommitInfo, error) {
	start := time.Now()
	info, err := b.uploader.Upload(ctx, params)
	if err != nil {
		return nil, err
	}

	slog.Debug("blob committed",
		"container", info.Container,
		"name", info.Name,
		"size", humanize.Bytes(uint64(info.Size)),
		"blocks", info.Blocks,
		"version", info.Version,
		"took", time.Since(start),
	)
	return info, nil
}

// soft check interface, incase we want to add a different implementation
var _ ObjectStore = (*BlobService)(nil)
