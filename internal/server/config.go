package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/openmined/photobox/internal/server/blob"
	"github.com/openmined/photobox/internal/utils"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr       = "127.0.0.1:8080"
	DefaultCreateRate = "10-S"
	DefaultLogDir     = ".logs"
)

type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	Blob   blob.Config  `mapstructure:"blob"`
	Upload UploadConfig `mapstructure:"upload"`
	LogDir string       `mapstructure:"log_dir"`
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Blob.Validate(); err != nil {
		return fmt.Errorf("blob config: %w", err)
	}
	if err := c.Upload.Validate(); err != nil {
		return fmt.Errorf("upload config: %w", err)
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("http", c.HTTP),
		slog.Any("blob", c.Blob),
		slog.Any("upload", c.Upload),
		slog.String("log_dir", c.LogDir),
	)
}

// ===================================================================================================

type HTTPConfig struct {
	Addr       string `mapstructure:"addr"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CreateRate string `mapstructure:"create_rate"`
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	if c.CertFile != "" && !utils.FileExists(c.CertFile) {
		return fmt.Errorf("cert_file %q not found", c.CertFile)
	}
	if c.KeyFile != "" && !utils.FileExists(c.KeyFile) {
		return fmt.Errorf("key_file %q not found", c.KeyFile)
	}
	if c.CreateRate != "" {
		if _, err := limiter.NewRateFromFormatted(c.CreateRate); err != nil {
			return fmt.Errorf("create_rate: %w", err)
		}
	}
	return nil
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c HTTPConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.String("cert_file", c.CertFile),
		slog.String("key_file", c.KeyFile),
		slog.String("create_rate", c.CreateRate),
	)
}

// ===================================================================================================

type UploadConfig struct {
	BlockSize        int64 `mapstructure:"block_size"`
	MaxConcurrency   int   `mapstructure:"max_concurrency"`
	MaxFilesInFlight int   `mapstructure:"max_files_in_flight"`
	Overwrite        bool  `mapstructure:"overwrite"`
}

func DefaultUploadConfig() UploadConfig {
	opts := blob.DefaultUploadOptions()
	return UploadConfig{
		BlockSize:      opts.BlockSize,
		MaxConcurrency: opts.MaxConcurrency,
		Overwrite:      opts.Overwrite,
	}
}

func (c *UploadConfig) Validate() error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.MaxFilesInFlight < 0 {
		return fmt.Errorf("max_files_in_flight must not be negative, got %d", c.MaxFilesInFlight)
	}
	return nil
}

// Options returns the per blob upload options
func (c *UploadConfig) Options() blob.UploadOptions {
	return blob.UploadOptions{
		BlockSize:      c.BlockSize,
		MaxConcurrency: c.MaxConcurrency,
		Overwrite:      c.Overwrite,
	}
}

func (c UploadConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("block_size", humanize.IBytes(uint64(c.BlockSize))),
		slog.Int("max_concurrency", c.MaxConcurrency),
		slog.Int("max_files_in_flight", c.MaxFilesInFlight),
		slog.Bool("overwrite", c.Overwrite),
	)
}
