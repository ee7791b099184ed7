package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/service/updater"
	"github.com/veilnet/veil-deploy/internal/version"
)

var (
	// settingsPath to the deployment settings YAML file.
	settingsPath string

	// rootCmd represents the base command for upgrading the proxy binary.
	rootCmd = &cobra.Command{
		Use:   "veil-update",
		Short: "Upgrade the installed veil binary to the latest release",
		Long: `Downloads and verifies the latest veil release, stops the service,
replaces the binary atomically, and restarts the service.

The runtime configuration is left untouched: port and password keep
whatever the installer wrote.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				SettingsPath: settingsPath,
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the veil-update CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&settingsPath, "settings", "s", config.DefaultSettingsFilename, "path to deployment settings file")
}
