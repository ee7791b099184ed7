package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds deployment parameters shared by the veil-deploy binaries.
// Every field has a compiled-in default; a settings file only needs to name
// the values it overrides.
type Settings struct {
	// ReleaseOwner is the GitHub account publishing veil releases.
	ReleaseOwner string `yaml:"release_owner"`
	// ReleaseRepo is the GitHub repository publishing veil releases.
	ReleaseRepo string `yaml:"release_repo"`
	// BinaryPath is where the proxy binary is installed.
	BinaryPath string `yaml:"binary_path"`
	// WrapperPath is where the generated launcher script is installed.
	WrapperPath string `yaml:"wrapper_path"`
	// ConfigDir is the directory holding the runtime configuration file.
	ConfigDir string `yaml:"config_dir"`
	// UnitPath is the systemd unit file location.
	UnitPath string `yaml:"unit_path"`
	// ServiceName is the systemd unit name without the .service suffix.
	ServiceName string `yaml:"service_name"`
	// ServiceUser is the dedicated no-login account running the service.
	ServiceUser string `yaml:"service_user"`
	// FetchTimeout bounds each release-feed and download request.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// PollAttempts is how many times service status is checked after start.
	PollAttempts uint `yaml:"poll_attempts"`
	// PollInterval is the pause between status checks.
	PollInterval time.Duration `yaml:"poll_interval"`
}

const (
	// DefaultSettingsFilename is the default filename for deployment settings.
	DefaultSettingsFilename = "veil-deploy.yaml"

	// DefaultFilePermissions is the default file permission for settings files.
	DefaultFilePermissions = 0o600

	// RuntimeConfigFilename is the fixed name of the runtime configuration
	// file inside ConfigDir. The generated wrapper sources it by this name.
	RuntimeConfigFilename = "veil.conf"

	defaultFetchTimeout = 30 * time.Second
	defaultPollAttempts = 10
	defaultPollInterval = 2 * time.Second
)

var (
	// errSettingsNotSet is returned when a nil settings value is provided.
	errSettingsNotSet = errors.New("settings are not set")
	// errReleaseSourceRequired is returned when the release repository is missing.
	errReleaseSourceRequired = errors.New("release owner and repository must be provided")
	// errInstallPathRequired is returned when an install path is missing.
	errInstallPathRequired = errors.New("binary, wrapper, config and unit paths must be provided")
	// errServiceIdentityRequired is returned when the unit or account name is missing.
	errServiceIdentityRequired = errors.New("service name and service user must be provided")
)

// DefaultSettings returns the compiled-in deployment layout.
func DefaultSettings() *Settings {
	return &Settings{
		ReleaseOwner: "veilnet",
		ReleaseRepo:  "veil",
		BinaryPath:   "/usr/local/bin/veil",
		WrapperPath:  "/usr/local/bin/veil-run",
		ConfigDir:    "/etc/veil",
		UnitPath:     "/etc/systemd/system/veil.service",
		ServiceName:  "veil",
		ServiceUser:  "veil",
		FetchTimeout: defaultFetchTimeout,
		PollAttempts: defaultPollAttempts,
		PollInterval: defaultPollInterval,
	}
}

// LoadSettings reads deployment settings from the provided path.
// A missing file is not an error: the defaults describe a complete layout.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	if path == "" {
		path = DefaultSettingsFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SaveSettings writes deployment settings to the provided path.
func SaveSettings(path string, settings *Settings) error {
	if settings == nil {
		return errSettingsNotSet
	}

	if path == "" {
		path = DefaultSettingsFilename
	}

	if err := ValidateSettings(settings); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ValidateSettings checks the provided settings for required fields
// and fills unset durations with defaults.
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return errSettingsNotSet
	}

	if settings.ReleaseOwner == "" || settings.ReleaseRepo == "" {
		return errReleaseSourceRequired
	}

	if settings.BinaryPath == "" || settings.WrapperPath == "" ||
		settings.ConfigDir == "" || settings.UnitPath == "" {
		return errInstallPathRequired
	}

	if settings.ServiceName == "" || settings.ServiceUser == "" {
		return errServiceIdentityRequired
	}

	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = defaultFetchTimeout
	}

	if settings.PollAttempts == 0 {
		settings.PollAttempts = defaultPollAttempts
	}

	if settings.PollInterval <= 0 {
		settings.PollInterval = defaultPollInterval
	}

	return nil
}

// RuntimeConfigPath returns the location of the runtime configuration file.
func (s *Settings) RuntimeConfigPath() string {
	return filepath.Join(s.ConfigDir, RuntimeConfigFilename)
}

// UnitName returns the full systemd unit name.
func (s *Settings) UnitName() string {
	return s.ServiceName + ".service"
}
