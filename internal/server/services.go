package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/openmined/photobox/internal/server/album"
	"github.com/openmined/photobox/internal/server/blob"
	"github.com/openmined/photobox/internal/server/upload"
	"github.com/openmined/photobox/internal/server/uploadlog"
)

const uploadLogDir = "uploads"

type Services struct {
	Blob     *blob.BlobService
	Album    *album.Service
	Pipeline *upload.Pipeline
	// UploadLog is nil when no log directory is configured
	UploadLog *uploadlog.UploadLogger
}

func NewServices(config *Config) (*Services, error) {
	blobSvc, err := blob.NewBlobService(&config.Blob)
	if err != nil {
		return nil, fmt.Errorf("create blob service: %w", err)
	}
	return NewServicesWithStore(blobSvc, config)
}

// NewServicesWithStore wires the album service, upload pipeline and upload log on top of an existing blob service
func NewServicesWithStore(blobSvc *blob.BlobService, config *Config) (*Services, error) {
	albumSvc := album.NewService(blobSvc, album.WithUploadOptions(config.Upload.Options()))
	pipeline := upload.NewPipeline(albumSvc, upload.WithMaxFilesInFlight(config.Upload.MaxFilesInFlight))

	var uploadLog *uploadlog.UploadLogger
	if config.LogDir != "" {
		var err error
		uploadLog, err = uploadlog.New(filepath.Join(config.LogDir, uploadLogDir))
		if err != nil {
			return nil, fmt.Errorf("create upload log: %w", err)
		}
	}

	return &Services{
		Blob:      blobSvc,
		Album:     albumSvc,
		Pipeline:  pipeline,
		UploadLog: uploadLog,
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	if err := s.Blob.Start(ctx); err != nil {
		return fmt.Errorf("start blob service: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.Blob.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop blob service: %w", err))
	}
	if s.UploadLog != nil {
		if err := s.UploadLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close upload log: %w", err))
		}
	}
	return errors.Join(errs...)
}
