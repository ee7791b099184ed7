package system

import (
	"context"
	"fmt"

	"github.com/veilnet/veil-deploy/internal/logger"
)

// EnsureServiceAccount creates the locked-down, no-login service account
// when it does not already exist. Running it twice is a no-op: the getent
// probe makes creation idempotent.
func EnsureServiceAccount(ctx context.Context, runner Runner, name string) error {
	if _, err := runner.Run(ctx, "getent", "passwd", name); err == nil {
		logger.InfoKV(ctx, "Service account already exists", "account", name)
		return nil
	}

	_, err := runner.Run(ctx, "useradd",
		"--system",
		"--no-create-home",
		"--home-dir", "/nonexistent",
		"--shell", "/usr/sbin/nologin",
		name)
	if err != nil {
		return fmt.Errorf("create service account %s: %w", name, err)
	}

	logger.InfoKV(ctx, "Created service account", "account", name)

	return nil
}

// RemoveServiceAccount deletes the service account when present.
// A missing account is logged as a warning, not an error.
func RemoveServiceAccount(ctx context.Context, runner Runner, name string) error {
	if _, err := runner.Run(ctx, "getent", "passwd", name); err != nil {
		logger.WarnKV(ctx, "Service account not found, nothing to remove", "account", name)
		return nil
	}

	if _, err := runner.Run(ctx, "userdel", name); err != nil {
		return fmt.Errorf("remove service account %s: %w", name, err)
	}

	logger.InfoKV(ctx, "Removed service account", "account", name)

	return nil
}
