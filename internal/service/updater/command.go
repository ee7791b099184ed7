package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/veilnet/veil-deploy/internal/archive"
	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/integrity"
	"github.com/veilnet/veil-deploy/internal/logger"
	"github.com/veilnet/veil-deploy/internal/platform"
	"github.com/veilnet/veil-deploy/internal/release"
	"github.com/veilnet/veil-deploy/internal/system"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// SettingsPath is the optional path to the deployment settings YAML file.
	SettingsPath string

	// Runner overrides host command execution. When nil the real host is
	// driven, which additionally requires root and a tool preflight.
	Runner system.Runner
	// Resolver overrides release resolution, used by tests.
	Resolver release.Resolver
}

// binaryMode matches the mode the installer used.
const binaryMode = 0o755

var (
	errNotRoot      = errors.New("updater must run as root")
	errNotInstalled = errors.New("veil is not installed, run the installer first")

	errServiceFailed  = errors.New("service failed to restart")
	errServiceTimeout = errors.New("service did not become active in time")
)

// updater holds the state for a single upgrade run.
type updater struct {
	settings   *config.Settings
	runner     system.Runner
	resolver   release.Resolver
	httpClient *http.Client
	workDir    string
}

// Run executes the upgrade workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "veil-update")

	up, err := newUpdater(opts)
	if err != nil {
		return err
	}

	defer up.cleanup(ctx)

	if err = up.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)
		return err
	}

	logger.Info(ctx, "Update completed")

	return nil
}

// newUpdater validates preconditions before any network call: the binary
// and a valid runtime configuration must already exist.
func newUpdater(opts *Options) (*updater, error) {
	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		return nil, err
	}

	up := &updater{
		settings:   settings,
		runner:     opts.Runner,
		resolver:   opts.Resolver,
		httpClient: release.NewHTTPClient(settings.FetchTimeout),
	}

	if up.runner == nil {
		if os.Geteuid() != 0 {
			return nil, errNotRoot
		}

		up.runner = system.ExecRunner{}

		if err = system.CheckTools(up.runner); err != nil {
			return nil, err
		}
	}

	if up.resolver == nil {
		up.resolver = release.NewResolver(settings.ReleaseOwner, settings.ReleaseRepo, up.httpClient)
	}

	if _, err = os.Stat(settings.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", errNotInstalled, settings.BinaryPath)
	}

	// The configuration is single-source: the updater only proves it is
	// intact and never rewrites it.
	if _, err = config.LoadRuntime(settings.RuntimeConfigPath()); err != nil {
		return nil, fmt.Errorf("%w: %s", errNotInstalled, err)
	}

	return up, nil
}

// run executes the sequential upgrade steps.
func (u *updater) run(ctx context.Context) error {
	arch, err := platform.HostArch()
	if err != nil {
		return err
	}

	asset, err := u.resolver.LatestAsset(ctx, arch)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "veil-update-")
	if err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}

	u.workDir = workDir

	archivePath, err := release.Download(ctx, u.httpClient, asset, workDir)
	if err != nil {
		return err
	}

	if err = integrity.Verify(ctx, archivePath, asset.Digest); err != nil {
		return err
	}

	binaryPath, err := archive.ExtractFile(archivePath, filepath.Base(u.settings.BinaryPath), workDir)
	if err != nil {
		return err
	}

	sc := system.NewSystemctl(u.runner)
	unit := u.settings.UnitName()

	logger.InfoKV(ctx, "Stopping service for binary replacement", "unit", unit)

	if err = sc.Stop(ctx, unit); err != nil {
		return err
	}

	u.warnAboutLingeringProcesses(ctx)

	if err = u.replaceBinary(ctx, binaryPath); err != nil {
		return err
	}

	if err = sc.Start(ctx, unit); err != nil {
		return err
	}

	switch sc.WaitActive(ctx, unit, u.settings.PollAttempts, u.settings.PollInterval) {
	case system.PollActive:
		logger.InfoKV(ctx, "Service is active", "unit", unit)
		return nil
	case system.PollFailed:
		return fmt.Errorf("%w: inspect `journalctl -u %s`", errServiceFailed, unit)
	default:
		return fmt.Errorf("%w: inspect `journalctl -u %s`", errServiceTimeout, unit)
	}
}

// replaceBinary atomically swaps the installed binary, restoring the old
// one when the swap fails midway.
func (u *updater) replaceBinary(ctx context.Context, newBinaryPath string) error {
	data, err := os.ReadFile(filepath.Clean(newBinaryPath))
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Replacing binary", "path", u.settings.BinaryPath)

	if err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: u.settings.BinaryPath,
		TargetMode: binaryMode,
	}); err != nil {
		return fmt.Errorf("apply binary update: %w", err)
	}

	oldPath := u.settings.BinaryPath + ".old"
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}

// warnAboutLingeringProcesses reports proxy processes that survived the
// service stop. Replacement still proceeds: the swap is atomic and the
// stale process keeps its old inode until restart.
func (u *updater) warnAboutLingeringProcesses(ctx context.Context) {
	processes, err := ps.Processes()
	if err != nil {
		logger.WarnKV(ctx, "Could not scan processes", "error", err)
		return
	}

	binaryName := filepath.Base(u.settings.BinaryPath)

	for _, process := range processes {
		if process.Executable() == binaryName {
			logger.WarnKV(ctx, "Proxy process still running after stop",
				"pid", process.Pid())
		}
	}
}

// cleanup removes the ephemeral working directory on every exit path.
func (u *updater) cleanup(ctx context.Context) {
	if u.workDir == "" {
		return
	}

	if err := os.RemoveAll(u.workDir); err != nil {
		logger.WarnKV(ctx, "Could not remove working directory",
			"path", u.workDir, "error", err)
	}
}
