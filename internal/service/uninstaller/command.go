package uninstaller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/logger"
	"github.com/veilnet/veil-deploy/internal/system"
)

// Options are inputs accepted by the uninstaller entry point.
type Options struct {
	// SettingsPath is the optional path to the deployment settings YAML file.
	SettingsPath string

	// Runner overrides host command execution. When nil the real host is
	// driven, which additionally requires root.
	Runner system.Runner
	// Input is where the confirmation answer is read from; defaults to stdin.
	Input io.Reader
}

var (
	errNotRoot = errors.New("uninstaller must run as root")
	// ErrAborted is returned when the operator declines the confirmation.
	ErrAborted = errors.New("uninstall aborted")
)

// Run executes the teardown workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "veil-uninstall")

	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		return err
	}

	runner := opts.Runner
	if runner == nil {
		if os.Geteuid() != 0 {
			return errNotRoot
		}

		runner = system.ExecRunner{}
	}

	input := opts.Input
	if input == nil {
		input = os.Stdin
	}

	if err = confirm(input, settings.ServiceName); err != nil {
		return err
	}

	uninstall(ctx, runner, settings)
	logger.Info(ctx, "Uninstall completed")

	return nil
}

// confirm requires an explicit yes before anything destructive happens.
func confirm(input io.Reader, serviceName string) error {
	fmt.Fprintf(os.Stderr,
		"This removes the %s service, its binary, configuration and account. Continue? [y/N]: ",
		serviceName)

	answer, err := bufio.NewReader(input).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return ErrAborted
	}
}

// uninstall removes all deployment artifacts. Every removal is independently
// guarded: a missing artifact is a warning, never an error, so a partially
// installed or already-removed host converges to clean.
func uninstall(ctx context.Context, runner system.Runner, settings *config.Settings) {
	sc := system.NewSystemctl(runner)
	unit := settings.UnitName()

	// Best effort: the unit may already be gone.
	if err := sc.Stop(ctx, unit); err != nil {
		logger.WarnKV(ctx, "Could not stop service", "unit", unit, "error", err)
	}

	if err := sc.Disable(ctx, unit); err != nil {
		logger.WarnKV(ctx, "Could not disable service", "unit", unit, "error", err)
	}

	removeFile(ctx, settings.UnitPath)

	if err := sc.DaemonReload(ctx); err != nil {
		logger.WarnKV(ctx, "Could not reload service manager", "error", err)
	}

	removeFile(ctx, settings.BinaryPath)
	removeFile(ctx, settings.WrapperPath)
	removeDir(ctx, settings.ConfigDir)

	if err := system.RemoveServiceAccount(ctx, runner, settings.ServiceUser); err != nil {
		logger.WarnKV(ctx, "Could not remove service account",
			"account", settings.ServiceUser, "error", err)
	}
}

// removeFile deletes one artifact when present.
func removeFile(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Artifact not found, skipping", "path", path)
		return
	}

	if err := os.Remove(path); err != nil {
		logger.WarnKV(ctx, "Could not remove artifact", "path", path, "error", err)
		return
	}

	logger.InfoKV(ctx, "Removed", "path", path)
}

// removeDir deletes one directory tree when present.
func removeDir(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Directory not found, skipping", "path", path)
		return
	}

	if err := os.RemoveAll(path); err != nil {
		logger.WarnKV(ctx, "Could not remove directory", "path", path, "error", err)
		return
	}

	logger.InfoKV(ctx, "Removed", "path", path)
}
