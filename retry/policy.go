// Package retry provides the bounded reconnection policy used after a lost connection:
// the wait between attempts, the attempt limit and the overall wall-clock timeout.
package retry

import (
	"fmt"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Unlimited disables the attempt limit. It is distinct from 0, which allows no attempts.
const Unlimited = -1

// IntervalFunc returns the wait after the failed attempt with the given zero-based index.
type IntervalFunc func(attempt int) time.Duration

// Policy bounds a reconnection cycle.
//
// Attempts stop when Limit attempts have been made (unless Limit is Unlimited) or,
// checked after each wait, when more than Timeout has elapsed since the cycle began
// (unless Timeout is 0).
type Policy struct {
	Interval     time.Duration // Fixed wait between attempts, used when IntervalFunc is nil
	IntervalFunc IntervalFunc  // Attempt-indexed wait; takes precedence over Interval
	Limit        int           // Maximum attempts per cycle, or Unlimited
	Timeout      time.Duration // Wall-clock bound per cycle; 0 disables it
}

// DefaultPolicy returns the default reconnection policy:
// 500ms between attempts, no attempt limit, 3s overall timeout.
func DefaultPolicy() Policy {
	return Policy{
		Interval: 500 * time.Millisecond,
		Limit:    Unlimited,
		Timeout:  3 * time.Second,
	}
}

// Validate checks that the policy bounds are well-formed.
func (p Policy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Interval, validation.Min(time.Duration(0))),
		validation.Field(&p.Limit, validation.Min(Unlimited)),
		validation.Field(&p.Timeout, validation.Min(time.Duration(0))),
	)
}

// Delay returns the wait after the failed attempt with the given zero-based index.
func (p Policy) Delay(attempt int) time.Duration {
	if p.IntervalFunc != nil {
		if d := p.IntervalFunc(attempt); d > 0 {
			return d
		}
		return 0
	}
	if p.Interval < 0 {
		return 0
	}
	return p.Interval
}

// Allows reports whether the attempt with the given one-based number may be made.
func (p Policy) Allows(attempt int) bool {
	if p.Limit == Unlimited {
		return true
	}
	return attempt <= p.Limit
}

// Expired reports whether the cycle that began at start has run past Timeout.
func (p Policy) Expired(start, now time.Time) bool {
	if p.Timeout <= 0 {
		return false
	}
	return now.Sub(start) > p.Timeout
}

// Bounded reports whether the policy can ever give up.
func (p Policy) Bounded() bool {
	return p.Limit != Unlimited || p.Timeout > 0
}

// Fixed returns an IntervalFunc that always waits d.
func Fixed(d time.Duration) IntervalFunc {
	return func(int) time.Duration { return d }
}

// Exponential returns an IntervalFunc implementing capped exponential backoff.
// Formula: delay = min(base * factor^attempt, maxDelay)
//
// Example with base=100ms, factor=2, maxDelay=1s:
//
//	Attempt 0: 100ms
//	Attempt 1: 200ms
//	Attempt 2: 400ms
//	Attempt 3: 800ms
//	Attempt 4: 1s
func Exponential(base, maxDelay time.Duration, factor float64) IntervalFunc {
	if factor < 1 {
		factor = 1
	}
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return base
		}
		delay := float64(base) * math.Pow(factor, float64(attempt))
		if maxDelay > 0 && delay > float64(maxDelay) {
			return maxDelay
		}
		return time.Duration(delay)
	}
}

// Describe returns a human-readable description of the first attempts of the schedule.
// Useful for logging the effective configuration.
//
// Example output:
//
//	Reconnect Schedule (limit=unlimited, timeout=3s):
//	  Attempt 1: then wait 500ms
//	  Attempt 2: then wait 500ms
//	  Attempt 3: then wait 500ms
func (p Policy) Describe(attempts int) string {
	limit := "unlimited"
	if p.Limit != Unlimited {
		limit = fmt.Sprintf("%d", p.Limit)
	}
	timeout := "none"
	if p.Timeout > 0 {
		timeout = p.Timeout.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reconnect Schedule (limit=%s, timeout=%s):\n", limit, timeout)
	for i := 1; i <= attempts && p.Allows(i); i++ {
		fmt.Fprintf(&b, "  Attempt %d: then wait %v\n", i, p.Delay(i-1))
	}
	return b.String()
}
