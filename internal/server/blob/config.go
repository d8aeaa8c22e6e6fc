package blob

import (
	"fmt"
	"log/slog"

	"github.com/openmined/photobox/internal/utils"
)

const (
	DriverS3     = "s3"
	DriverMemory = "memory"
)

type Config struct {
	Driver        string `mapstructure:"driver"`
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverS3, "":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}

	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("driver", c.Driver),
		slog.String("bucket_name", c.BucketName),
		slog.String("region", c.Region),
		slog.String("endpoint", c.Endpoint),
		slog.String("access_key", utils.MaskSecret(c.AccessKey)),
		slog.String("secret_key", utils.MaskSecret(c.SecretKey)),
		slog.Bool("use_accelerate", c.UseAccelerate),
	)
}
