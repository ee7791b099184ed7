package integration

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veilnet/veil-deploy/internal/service/installer"
	"github.com/veilnet/veil-deploy/internal/service/uninstaller"
)

// TestUninstall_Confirmed covers the teardown scenario: after confirmation
// every artifact and the service account are gone.
func TestUninstall_Confirmed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settings, settingsPath := testSettings(t, dir)
	host := newFakeHost()

	feed := startReleaseFeed(t, buildArchive(t, []byte("veil binary v1")))

	err := installer.Run(context.Background(), &installer.Options{
		SettingsPath: settingsPath,
		Port:         8443,
		Password:     "secret1",
		Runner:       host,
		Resolver:     feed.resolver(t),
	})
	require.NoError(t, err)

	err = uninstaller.Run(context.Background(), &uninstaller.Options{
		SettingsPath: settingsPath,
		Runner:       host,
		Input:        strings.NewReader("y\n"),
	})
	require.NoError(t, err)

	for _, path := range []string{
		settings.UnitPath,
		settings.BinaryPath,
		settings.WrapperPath,
		settings.ConfigDir,
	} {
		_, err = os.Stat(path)
		require.ErrorIs(t, err, os.ErrNotExist, path)
	}

	require.False(t, host.accounts["veil"])
	require.Contains(t, host.calls, "systemctl stop veil.service")
	require.Contains(t, host.calls, "systemctl disable veil.service")
}

// TestUninstall_Declined leaves everything in place without confirmation.
func TestUninstall_Declined(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settings, settingsPath := testSettings(t, dir)
	host := newFakeHost()

	feed := startReleaseFeed(t, buildArchive(t, []byte("veil binary v1")))

	err := installer.Run(context.Background(), &installer.Options{
		SettingsPath: settingsPath,
		Port:         8443,
		Password:     "secret1",
		Runner:       host,
		Resolver:     feed.resolver(t),
	})
	require.NoError(t, err)

	err = uninstaller.Run(context.Background(), &uninstaller.Options{
		SettingsPath: settingsPath,
		Runner:       host,
		Input:        strings.NewReader("n\n"),
	})
	require.ErrorIs(t, err, uninstaller.ErrAborted)

	_, err = os.Stat(settings.BinaryPath)
	require.NoError(t, err)
	require.True(t, host.accounts["veil"])
}

// TestUninstall_MissingArtifacts converges on an already-clean host.
func TestUninstall_MissingArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, settingsPath := testSettings(t, dir)

	err := uninstaller.Run(context.Background(), &uninstaller.Options{
		SettingsPath: settingsPath,
		Runner:       newFakeHost(),
		Input:        strings.NewReader("yes\n"),
	})
	require.NoError(t, err)
}
