package installer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"golang.org/x/term"

	"github.com/veilnet/veil-deploy/internal/archive"
	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/integrity"
	"github.com/veilnet/veil-deploy/internal/logger"
	"github.com/veilnet/veil-deploy/internal/platform"
	"github.com/veilnet/veil-deploy/internal/release"
	"github.com/veilnet/veil-deploy/internal/system"
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// SettingsPath is the optional path to the deployment settings YAML file.
	SettingsPath string
	// Port is the listen port from the command line; 0 means unset.
	Port int
	// Password is the shared secret from the command line; empty means unset.
	Password string

	// Runner overrides host command execution. When nil the real host is
	// driven, which additionally requires root and a tool preflight.
	Runner system.Runner
	// Resolver overrides release resolution, used by tests.
	Resolver release.Resolver
}

// BinaryMember is the fixed name of the proxy binary inside release archives.
const BinaryMember = "veil"

const (
	binaryMode    = 0o755
	wrapperMode   = 0o755
	unitMode      = 0o644
	configDirMode = 0o750

	// Random ports are drawn from the upper registered range to avoid
	// colliding with well-known services.
	randomPortBase = 20000
	randomPortSpan = 40000

	passwordBytes = 24
)

var (
	errNotRoot        = errors.New("installer must run as root")
	errServiceFailed  = errors.New("service failed to start")
	errServiceTimeout = errors.New("service did not become active in time")
)

// installer holds the state for a single installation run.
// It is intentionally unexported, call Run(ctx, Options) from callers.
type installer struct {
	settings   *config.Settings
	runtime    *config.Runtime
	runner     system.Runner
	resolver   release.Resolver
	httpClient *http.Client
	workDir    string
}

// Run executes the installation workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "veil-install")

	inst, err := newInstaller(ctx, opts)
	if err != nil {
		return err
	}

	defer inst.cleanup(ctx)

	if err = inst.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Installation failed", "error", err)
		return err
	}

	logger.Info(ctx, "Installation completed")

	return nil
}

// newInstaller validates preconditions and assembles the run state.
func newInstaller(ctx context.Context, opts *Options) (*installer, error) {
	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		return nil, err
	}

	inst := &installer{
		settings:   settings,
		runner:     opts.Runner,
		resolver:   opts.Resolver,
		httpClient: release.NewHTTPClient(settings.FetchTimeout),
	}

	if inst.runner == nil {
		if os.Geteuid() != 0 {
			return nil, errNotRoot
		}

		inst.runner = system.ExecRunner{}

		if err = system.CheckTools(inst.runner); err != nil {
			return nil, err
		}
	}

	if inst.resolver == nil {
		inst.resolver = release.NewResolver(settings.ReleaseOwner, settings.ReleaseRepo, inst.httpClient)
	}

	inst.runtime, err = resolveRuntime(ctx, opts)
	if err != nil {
		return nil, err
	}

	return inst, nil
}

// run executes the sequential, non-resumable installation steps.
func (i *installer) run(ctx context.Context) error {
	arch, err := platform.HostArch()
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Resolved host architecture", "arch", arch)

	binaryPath, err := i.fetchBinary(ctx, arch)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installing binary", "path", i.settings.BinaryPath)

	if err = installFile(binaryPath, i.settings.BinaryPath, binaryMode); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}

	if err = system.EnsureServiceAccount(ctx, i.runner, i.settings.ServiceUser); err != nil {
		return err
	}

	if err = i.writeConfiguration(ctx); err != nil {
		return err
	}

	if err = i.installServiceFiles(ctx); err != nil {
		return err
	}

	return i.startService(ctx)
}

// fetchBinary resolves, downloads, verifies and extracts the release binary
// into the ephemeral working directory.
func (i *installer) fetchBinary(ctx context.Context, arch platform.Arch) (string, error) {
	asset, err := i.resolver.LatestAsset(ctx, arch)
	if err != nil {
		return "", err
	}

	workDir, err := os.MkdirTemp("", "veil-install-")
	if err != nil {
		return "", fmt.Errorf("create working directory: %w", err)
	}

	i.workDir = workDir

	archivePath, err := release.Download(ctx, i.httpClient, asset, workDir)
	if err != nil {
		return "", err
	}

	if err = integrity.Verify(ctx, archivePath, asset.Digest); err != nil {
		return "", err
	}

	return archive.ExtractFile(archivePath, BinaryMember, workDir)
}

// writeConfiguration creates the configuration directory and the runtime
// config file with restrictive ownership and permissions.
func (i *installer) writeConfiguration(ctx context.Context) error {
	if err := os.MkdirAll(i.settings.ConfigDir, configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	configPath := i.settings.RuntimeConfigPath()
	if err := config.SaveRuntime(configPath, i.runtime); err != nil {
		return err
	}

	// root owns the secret, the service account may only read it.
	group := "root:" + i.settings.ServiceUser
	for _, path := range []string{i.settings.ConfigDir, configPath} {
		if _, err := i.runner.Run(ctx, "chown", group, path); err != nil {
			return fmt.Errorf("set ownership of %s: %w", path, err)
		}
	}

	logger.InfoKV(ctx, "Wrote runtime configuration", "path", configPath, "port", i.runtime.Port)

	return nil
}

// installServiceFiles renders and installs the wrapper and the unit, then
// enables the service.
func (i *installer) installServiceFiles(ctx context.Context) error {
	wrapper, err := system.RenderWrapper(i.settings)
	if err != nil {
		return err
	}

	if err = os.WriteFile(i.settings.WrapperPath, wrapper, wrapperMode); err != nil {
		return fmt.Errorf("install wrapper: %w", err)
	}

	unit, err := system.RenderUnit(i.settings)
	if err != nil {
		return err
	}

	if err = os.WriteFile(i.settings.UnitPath, unit, unitMode); err != nil {
		return fmt.Errorf("install unit: %w", err)
	}

	sc := system.NewSystemctl(i.runner)

	if err = sc.DaemonReload(ctx); err != nil {
		return err
	}

	return sc.EnableNow(ctx, i.settings.UnitName())
}

// startService polls the freshly enabled unit until it is active or dead.
func (i *installer) startService(ctx context.Context) error {
	sc := system.NewSystemctl(i.runner)
	unit := i.settings.UnitName()

	switch sc.WaitActive(ctx, unit, i.settings.PollAttempts, i.settings.PollInterval) {
	case system.PollActive:
		logger.InfoKV(ctx, "Service is active", "unit", unit)
		return nil
	case system.PollFailed:
		return fmt.Errorf("%w: inspect `journalctl -u %s`", errServiceFailed, unit)
	default:
		return fmt.Errorf("%w: inspect `journalctl -u %s`", errServiceTimeout, unit)
	}
}

// cleanup removes the ephemeral working directory on every exit path.
func (i *installer) cleanup(ctx context.Context) {
	if i.workDir == "" {
		return
	}

	if err := os.RemoveAll(i.workDir); err != nil {
		logger.WarnKV(ctx, "Could not remove working directory",
			"path", i.workDir, "error", err)
	}
}

// installFile atomically installs src at dest with the given mode,
// rolling back on a failed swap.
func installFile(src, dest string, mode os.FileMode) error {
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}

	if err = ensureTarget(dest); err != nil {
		return err
	}

	if err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: dest,
		TargetMode: mode,
	}); err != nil {
		return err
	}

	// go-update keeps the previous file around; a fresh install has none worth keeping.
	oldPath := dest + ".old"
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}

// ensureTarget makes sure the destination exists so the apply can swap it.
func ensureTarget(dest string) error {
	if _, err := os.Stat(dest); err == nil || !errors.Is(err, os.ErrNotExist) {
		return err
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}

	return file.Close()
}

// resolveRuntime applies the port/password precedence:
// explicit flag, then interactive prompt on a terminal, then random fallback.
func resolveRuntime(ctx context.Context, opts *Options) (*config.Runtime, error) {
	rc := &config.Runtime{
		Port:     opts.Port,
		Password: opts.Password,
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	if rc.Port == 0 && interactive {
		port, err := promptPort()
		if err != nil {
			return nil, err
		}

		rc.Port = port
	}

	if rc.Port == 0 {
		port, err := randomPort()
		if err != nil {
			return nil, err
		}

		rc.Port = port
		logger.InfoKV(ctx, "Generated random listen port", "port", rc.Port)
	}

	if rc.Password == "" && interactive {
		password, err := promptPassword()
		if err != nil {
			return nil, err
		}

		rc.Password = password
	}

	if rc.Password == "" {
		password, err := randomPassword()
		if err != nil {
			return nil, err
		}

		rc.Password = password
		// The value itself is never echoed or logged; read it from the
		// configuration file as root.
		logger.Info(ctx, "Generated random password")
	}

	if err := config.ValidateRuntime(rc); err != nil {
		return nil, err
	}

	return rc, nil
}

// promptPort asks for a listen port; an empty answer defers to generation.
func promptPort() (int, error) {
	fmt.Fprint(os.Stderr, "Listen port (empty for random): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("read port: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return 0, nil
	}

	port, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("parse port: %w", err)
	}

	return port, nil
}

// promptPassword asks for the shared secret without echoing it.
// An empty answer defers to generation.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password (empty for random): ")

	secret, err := term.ReadPassword(int(os.Stdin.Fd()))

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(secret), nil
}

// randomPort draws a port from the upper registered range.
func randomPort() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(randomPortSpan))
	if err != nil {
		return 0, fmt.Errorf("generate port: %w", err)
	}

	return randomPortBase + int(n.Int64()), nil
}

// randomPassword generates an URL-safe shared secret.
func randomPassword() (string, error) {
	raw := make([]byte, passwordBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}
