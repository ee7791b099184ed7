package system

import (
	"context"
	"fmt"
	"strings"
)

// Systemctl wraps the host's service manager commands for one unit lifecycle.
type Systemctl struct {
	runner Runner
}

// NewSystemctl creates a service-manager wrapper over the provided runner.
func NewSystemctl(runner Runner) *Systemctl {
	return &Systemctl{runner: runner}
}

// DaemonReload makes systemd pick up unit file changes.
func (s *Systemctl) DaemonReload(ctx context.Context) error {
	if _, err := s.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}

	return nil
}

// EnableNow enables the unit and starts it in one step.
func (s *Systemctl) EnableNow(ctx context.Context, unit string) error {
	if _, err := s.runner.Run(ctx, "systemctl", "enable", "--now", unit); err != nil {
		return fmt.Errorf("enable %s: %w", unit, err)
	}

	return nil
}

// Start starts the unit.
func (s *Systemctl) Start(ctx context.Context, unit string) error {
	if _, err := s.runner.Run(ctx, "systemctl", "start", unit); err != nil {
		return fmt.Errorf("start %s: %w", unit, err)
	}

	return nil
}

// Stop stops the unit.
func (s *Systemctl) Stop(ctx context.Context, unit string) error {
	if _, err := s.runner.Run(ctx, "systemctl", "stop", unit); err != nil {
		return fmt.Errorf("stop %s: %w", unit, err)
	}

	return nil
}

// Disable disables the unit.
func (s *Systemctl) Disable(ctx context.Context, unit string) error {
	if _, err := s.runner.Run(ctx, "systemctl", "disable", unit); err != nil {
		return fmt.Errorf("disable %s: %w", unit, err)
	}

	return nil
}

// IsActive reports the unit's activation state ("active", "activating",
// "inactive", "failed", ...). systemctl exits non-zero for anything but
// active while still printing the state, so the output wins over the error.
func (s *Systemctl) IsActive(ctx context.Context, unit string) string {
	output, _ := s.runner.Run(ctx, "systemctl", "is-active", unit)

	state := strings.TrimSpace(output)
	if state == "" {
		state = "unknown"
	}

	return state
}
