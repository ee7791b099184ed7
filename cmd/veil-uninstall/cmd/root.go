package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/service/uninstaller"
	"github.com/veilnet/veil-deploy/internal/version"
)

var (
	// settingsPath to the deployment settings YAML file.
	settingsPath string

	// rootCmd represents the base command for removing the proxy service.
	rootCmd = &cobra.Command{
		Use:   "veil-uninstall",
		Short: "Remove the veil service, binary, configuration and account",
		Long: `Stops and disables the veil service, then removes the unit file, the
binary, the wrapper, the configuration directory and the service account.

Asks for explicit confirmation before anything destructive happens;
artifacts that are already gone are skipped with a warning.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &uninstaller.Options{
				SettingsPath: settingsPath,
			}

			return uninstaller.Run(ctx, options)
		},
	}
)

// Execute runs the veil-uninstall CLI and exits with non-zero status on error.
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
