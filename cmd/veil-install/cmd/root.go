package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/service/installer"
	"github.com/veilnet/veil-deploy/internal/version"
)

var (
	// settingsPath to the deployment settings YAML file.
	settingsPath string
	// port is the optional explicit listen port.
	port int
	// password is the optional explicit shared secret.
	password string

	// rootCmd represents the base command for installing the proxy service.
	rootCmd = &cobra.Command{
		Use:   "veil-install",
		Short: "Install the veil proxy as a systemd service",
		Long: `Downloads the latest veil release for this host's architecture, verifies
its digest, installs the binary, provisions a dedicated no-login service
account and a restricted configuration file, and enables a hardened
systemd unit.

Port and password come from flags when given, from an interactive prompt
on a terminal, and are generated randomly otherwise. Generated passwords
are never printed; read them from the configuration file as root.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				SettingsPath: settingsPath,
				Port:         port,
				Password:     password,
			}

			return installer.Run(ctx, options)
		},
	}
)

// Execute runs the veil-install CLI and exits with non-zero status on error.
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
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port for the proxy (random when omitted)")
	rootCmd.Flags().StringVar(&password, "password", "", "shared secret for the proxy (random when omitted)")
}
