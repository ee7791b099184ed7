package system

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/veilnet/veil-deploy/internal/logger"
)

// PollResult is the tri-state outcome of waiting for a unit to come up.
type PollResult int

const (
	// PollActive means the unit reached the active state.
	PollActive PollResult = iota
	// PollFailed means the unit reported failed or inactive: terminal,
	// further polling cannot help.
	PollFailed
	// PollTimedOut means the attempt budget ran out while still activating.
	PollTimedOut
)

var (
	errUnitFailed      = errors.New("unit entered a terminal state")
	errStillActivating = errors.New("unit still activating")
)

// WaitActive polls the unit's state a bounded number of times with a fixed
// interval. "active" succeeds immediately; "failed" and "inactive" are
// immediate terminal failures; anything else waits and re-polls until the
// budget is exhausted.
func (s *Systemctl) WaitActive(ctx context.Context, unit string, attempts uint, interval time.Duration) PollResult {
	if attempts == 0 {
		attempts = 1
	}

	check := func() error {
		state := s.IsActive(ctx, unit)
		logger.InfoKV(ctx, "Service status", "unit", unit, "state", state)

		switch state {
		case "active":
			return nil
		case "failed", "inactive":
			return backoff.Permanent(errUnitFailed)
		default:
			return errStillActivating
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)

	err := backoff.Retry(check, policy)

	switch {
	case err == nil:
		return PollActive
	case errors.Is(err, errUnitFailed):
		return PollFailed
	default:
		return PollTimedOut
	}
}
