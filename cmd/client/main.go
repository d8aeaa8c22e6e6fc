package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/photobox/internal/photosdk"
	"github.com/openmined/photobox/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultServerURL = "http://127.0.0.1:8080"
	envPrefix        = "PHOTOBOX"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "photobox",
		Short:        "PhotoBox CLI",
		Version:      version.Detailed(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogger(verbose)
		},
	}

	cmd.PersistentFlags().StringP("server", "s", defaultServerURL, "PhotoBox server URL")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logs")

	cmd.AddCommand(newAlbumCmd())
	cmd.AddCommand(newPhotoCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))
}

// serverURL resolves --server, then PHOTOBOX_SERVER_URL, then the default
func serverURL(cmd *cobra.Command) string {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	_ = v.BindEnv("server_url")
	_ = v.BindPFlag("server_url", cmd.Flag("server"))
	return v.GetString("server_url")
}

func newSDK(cmd *cobra.Command) (*photosdk.PhotoSDK, error) {
	sdk, err := photosdk.New(serverURL(cmd))
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	sdk.SetDebug(verbose)
	return sdk, nil
}
