package system

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veilnet/veil-deploy/internal/config"
)

// fakeRunner records commands and answers them through a scripted handler.
type fakeRunner struct {
	calls   []string
	handler func(name string, args ...string) (string, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))

	if f.handler == nil {
		return "", nil
	}

	return f.handler(name, args...)
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

// TestEnsureServiceAccount_Idempotent verifies the second run does not
// attempt a second creation.
func TestEnsureServiceAccount_Idempotent(t *testing.T) {
	t.Parallel()

	accounts := map[string]bool{}
	runner := &fakeRunner{}
	runner.handler = func(name string, args ...string) (string, error) {
		switch name {
		case "getent":
			if accounts[args[len(args)-1]] {
				return "veil:x:998:998::/nonexistent:/usr/sbin/nologin", nil
			}

			return "", errors.New("exit status 2")
		case "useradd":
			accounts[args[len(args)-1]] = true
			return "", nil
		default:
			return "", nil
		}
	}

	ctx := context.Background()
	require.NoError(t, EnsureServiceAccount(ctx, runner, "veil"))
	require.NoError(t, EnsureServiceAccount(ctx, runner, "veil"))

	created := 0
	for _, call := range runner.calls {
		if strings.HasPrefix(call, "useradd") {
			created++
		}
	}

	require.Equal(t, 1, created)
	require.True(t, accounts["veil"])
}

// TestRemoveServiceAccount_Missing treats an absent account as a warning, not an error.
func TestRemoveServiceAccount_Missing(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		handler: func(name string, _ ...string) (string, error) {
			if name == "getent" {
				return "", errors.New("exit status 2")
			}

			return "", nil
		},
	}

	require.NoError(t, RemoveServiceAccount(context.Background(), runner, "veil"))

	for _, call := range runner.calls {
		require.NotContains(t, call, "userdel")
	}
}

// TestWaitActive covers the tri-state poll outcomes.
func TestWaitActive(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		states []string
		want   PollResult
	}{
		{name: "immediately active", states: []string{"active"}, want: PollActive},
		{name: "activating then active", states: []string{"activating", "activating", "active"}, want: PollActive},
		{name: "failed is terminal", states: []string{"activating", "failed"}, want: PollFailed},
		{name: "inactive is terminal", states: []string{"inactive"}, want: PollFailed},
		{name: "budget exhausted", states: []string{"activating", "activating", "activating", "activating", "activating"}, want: PollTimedOut},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			step := 0
			runner := &fakeRunner{
				handler: func(_ string, _ ...string) (string, error) {
					state := tc.states[min(step, len(tc.states)-1)]
					step++

					if state == "active" {
						return state, nil
					}

					return state, errors.New("exit status 3")
				},
			}

			sc := NewSystemctl(runner)
			got := sc.WaitActive(context.Background(), "veil.service", 4, time.Millisecond)
			require.Equal(t, tc.want, got)
		})
	}
}

// TestWaitActive_TerminalStopsPolling ensures no further checks happen after failed.
func TestWaitActive_TerminalStopsPolling(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		handler: func(_ string, _ ...string) (string, error) {
			return "failed", errors.New("exit status 3")
		},
	}

	sc := NewSystemctl(runner)
	require.Equal(t, PollFailed, sc.WaitActive(context.Background(), "veil.service", 10, time.Millisecond))
	require.Len(t, runner.calls, 1)
}

// TestRenderUnit checks the hardening directives and substituted fields.
func TestRenderUnit(t *testing.T) {
	t.Parallel()

	unit, err := RenderUnit(config.DefaultSettings())
	require.NoError(t, err)

	text := string(unit)
	for _, directive := range []string{
		"User=veil",
		"ExecStart=/usr/local/bin/veil-run",
		"Restart=on-failure",
		"NoNewPrivileges=true",
		"PrivateTmp=true",
		"PrivateDevices=true",
		"ProtectSystem=strict",
		"ReadWritePaths=/etc/veil",
		"LimitNOFILE=1048576",
	} {
		require.Contains(t, text, directive)
	}
}

// TestRenderWrapper checks the launcher parses the runtime config and execs the binary.
func TestRenderWrapper(t *testing.T) {
	t.Parallel()

	wrapper, err := RenderWrapper(config.DefaultSettings())
	require.NoError(t, err)

	text := string(wrapper)
	require.True(t, strings.HasPrefix(text, "#!/bin/sh"))
	require.Contains(t, text, `CONF="/etc/veil/veil.conf"`)
	require.Contains(t, text, `exec "/usr/local/bin/veil"`)
	require.Contains(t, text, "PORT and PASSWORD must both be set")
}

// TestCheckTools passes when every tool resolves.
func TestCheckTools(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckTools(&fakeRunner{}))
}

// TestSystemctl_Commands verifies the exact commands issued.
func TestSystemctl_Commands(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	sc := NewSystemctl(runner)
	ctx := context.Background()

	require.NoError(t, sc.DaemonReload(ctx))
	require.NoError(t, sc.EnableNow(ctx, "veil.service"))
	require.NoError(t, sc.Stop(ctx, "veil.service"))
	require.NoError(t, sc.Start(ctx, "veil.service"))
	require.NoError(t, sc.Disable(ctx, "veil.service"))

	require.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable --now veil.service",
		"systemctl stop veil.service",
		"systemctl start veil.service",
		"systemctl disable veil.service",
	}, runner.calls)
}
