package pglisten

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/retry"
)

// reconnector obtains a fresh connection under a retry policy.
type reconnector struct {
	cfg     client.Config
	factory client.Factory
	policy  retry.Policy
	logger  Logger
}

// connect makes attempts until one succeeds or the policy gives up. onAttempt is
// called with the one-based number before every attempt. It returns the live
// client and the number of attempts made.
//
// The wait after a failure is clamped to the remaining timeout budget, so a
// bounded cycle gives up within its timeout plus the duration of one handshake.
// Canceling ctx aborts both the handshake and the wait.
func (r *reconnector) connect(ctx context.Context, onAttempt func(attempt int)) (client.Client, int, error) {
	start := time.Now()
	attempt := 0
	var lastErr error

	for r.policy.Allows(attempt + 1) {
		attempt++
		if onAttempt != nil {
			onAttempt(attempt)
		}

		c, err := r.dial(ctx)
		if err == nil {
			return c, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt, NewErrorWithCause(ErrCodeReconnectExhausted, "reconnect aborted", ctx.Err())
		}
		r.logger.Warnf("Reconnect attempt %d failed: %v", attempt, err)

		if !r.policy.Allows(attempt + 1) {
			break
		}

		wait := r.policy.Delay(attempt - 1)
		final := false
		if r.policy.Timeout > 0 {
			if remaining := time.Until(start.Add(r.policy.Timeout)); wait >= remaining {
				wait, final = max(remaining, 0), true
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, NewErrorWithCause(ErrCodeReconnectExhausted, "reconnect aborted", ctx.Err())
		case <-timer.C:
		}

		if final || r.policy.Expired(start, time.Now()) {
			return nil, attempt, NewErrorWithCause(ErrCodeReconnectExhausted,
				fmt.Sprintf("timeout reached after %d attempts (%v)", attempt, r.policy.Timeout), lastErr)
		}
	}

	return nil, attempt, NewErrorWithCause(ErrCodeReconnectExhausted,
		fmt.Sprintf("retry limit exceeded after %d attempts", attempt), lastErr)
}

// dial builds and connects one client. A client that ended during the handshake
// counts as a failure.
func (r *reconnector) dial(ctx context.Context) (client.Client, error) {
	c := r.factory(r.cfg)
	if err := c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	select {
	case <-c.Done():
		err := c.Err()
		if err == nil {
			err = client.ErrConnectionEnded
		}
		_ = c.Close()
		return nil, err
	default:
		return c, nil
	}
}
