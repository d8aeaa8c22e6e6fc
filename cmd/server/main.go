package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/photobox/internal/server"
	"github.com/openmined/photobox/internal/server/blob"
	"github.com/openmined/photobox/internal/utils"
	"github.com/openmined/photobox/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PHOTOBOX"

var rootCmd = &cobra.Command{
	Use:     "server",
	Short:   "PhotoBox Server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		closeLog, err := setupLogger(cfg.LogDir)
		if err != nil {
			return err
		}
		defer closeLog()

		s, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().String("cert", "", "Path to the certificate file")
	cmd.Flags().String("key", "", "Path to the key file")
	cmd.Flags().String("driver", blob.DriverS3, "Object store driver (s3, memory)")
	cmd.Flags().StringP("config", "f", "", "Path to the config file (yaml, json)")
}

func main() {
	// stdout only until the config names a log directory
	slog.SetDefault(slog.New(stdoutHandler()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Changed {
		configFilePath := f.Value.String()
		v.SetConfigFile(configFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", configFilePath, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("photobox")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
			}
		}
	}

	// every key needs a default for AutomaticEnv to reach it during Unmarshal
	upload := server.DefaultUploadConfig()
	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.create_rate", server.DefaultCreateRate)
	v.SetDefault("blob.driver", blob.DriverS3)
	v.SetDefault("blob.bucket_name", "")
	v.SetDefault("blob.region", "")
	v.SetDefault("blob.access_key", "")
	v.SetDefault("blob.secret_key", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.use_accelerate", false)
	v.SetDefault("upload.block_size", upload.BlockSize)
	v.SetDefault("upload.max_concurrency", upload.MaxConcurrency)
	v.SetDefault("upload.max_files_in_flight", upload.MaxFilesInFlight)
	v.SetDefault("upload.overwrite", upload.Overwrite)
	v.SetDefault("log_dir", server.DefaultLogDir)

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")
	bindFlag(v, cmd, "blob.driver", "driver")

	// PHOTOBOX_HTTP_ADDR, PHOTOBOX_BLOB_BUCKET_NAME, ...
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.LogDir != "" {
		logDir, err := utils.ResolvePath(cfg.LogDir)
		if err != nil {
			return nil, fmt.Errorf("log_dir: %w", err)
		}
		cfg.LogDir = logDir
	}

	return &cfg, nil
}

// bindFlag lets an explicitly set flag override the file and the environment
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

func stdoutHandler() slog.Handler {
	return tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
}

// setupLogger logs to stdout and to a fresh file under logDir
func setupLogger(logDir string) (func(), error) {
	if logDir == "" {
		return func() {}, nil
	}

	if err := utils.EnsureDir(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("server-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler(), fileHandler)))

	return func() { file.Close() }, nil
}
