package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes host commands. The production implementation shells out;
// tests substitute a scripted fake so workflows never touch the host.
type Runner interface {
	// Run executes the command and returns its combined output.
	Run(ctx context.Context, name string, args ...string) (string, error)
	// LookPath reports where a tool is installed, or an error when absent.
	LookPath(name string) (string, error)
}

// ExecRunner drives the real host through exec.CommandContext.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(output))

	if err != nil {
		return trimmed, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, trimmed)
	}

	return trimmed, nil
}

// LookPath implements Runner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name) //nolint:wrapcheck // Callers add tool context.
}

// ErrMissingTool is returned when a required host tool is not on PATH.
var ErrMissingTool = errors.New("required tool not found")

// requiredTools are the host commands every workflow depends on.
var requiredTools = []string{"systemctl", "useradd", "userdel", "getent", "chown"}

// CheckTools verifies the host dependencies are present before any work starts.
func CheckTools(runner Runner) error {
	for _, tool := range requiredTools {
		if _, err := runner.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingTool, tool)
		}
	}

	return nil
}
