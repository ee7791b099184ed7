package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Runtime is the configuration consumed by the proxy at every service start.
// It lives in exactly one file; the wrapper and the updater re-read it
// rather than caching a copy.
type Runtime struct {
	// Port is the TCP listen port, 1-65535.
	Port int
	// Password is the opaque shared secret. Never logged.
	Password string
}

const (
	portKey     = "PORT"
	passwordKey = "PASSWORD"

	// RuntimeFilePermissions keeps the shared secret away from other users:
	// owner root, group service account, no world access.
	RuntimeFilePermissions = 0o640

	maxPort = 65535
)

var (
	// ErrPortOutOfRange is returned when the port is not within 1-65535.
	ErrPortOutOfRange = errors.New("port must be between 1 and 65535")
	// ErrPasswordRequired is returned when the password is empty.
	ErrPasswordRequired = errors.New("password must not be empty")
	// ErrPasswordLineBreak is returned when the password would break the
	// newline-delimited file format.
	ErrPasswordLineBreak = errors.New("password must not contain line breaks")
	// ErrMalformedRuntimeConfig is returned for lines that are not KEY=value.
	ErrMalformedRuntimeConfig = errors.New("malformed runtime configuration")
)

// ValidateRuntime checks the invariant that both fields are present and sane.
func ValidateRuntime(rc *Runtime) error {
	if rc.Port < 1 || rc.Port > maxPort {
		return ErrPortOutOfRange
	}

	if rc.Password == "" {
		return ErrPasswordRequired
	}

	if strings.ContainsAny(rc.Password, "\r\n") {
		return ErrPasswordLineBreak
	}

	return nil
}

// LoadRuntime reads and validates the runtime configuration file.
func LoadRuntime(path string) (*Runtime, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read runtime config: %w", err)
	}

	var rc Runtime

	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRuntimeConfig, line)
		}

		switch key {
		case portKey:
			rc.Port, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", portKey, err)
			}
		case passwordKey:
			rc.Password = value
		default:
			// Unknown keys are preserved by nobody and rejected loudly:
			// the file has exactly two fields.
			return nil, fmt.Errorf("%w: unknown key %q", ErrMalformedRuntimeConfig, key)
		}
	}

	if err = ValidateRuntime(&rc); err != nil {
		return nil, err
	}

	return &rc, nil
}

// SaveRuntime validates and writes the runtime configuration file with
// restrictive permissions. Ownership is adjusted separately by the installer.
func SaveRuntime(path string, rc *Runtime) error {
	if err := ValidateRuntime(rc); err != nil {
		return err
	}

	contents := fmt.Sprintf("%s=%d\n%s=%s\n", portKey, rc.Port, passwordKey, rc.Password)

	if err := os.WriteFile(filepath.Clean(path), []byte(contents), RuntimeFilePermissions); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}

	return nil
}
