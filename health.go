package pglisten

import (
	"context"
	"time"

	"github.com/coregx/pglisten/client"
)

// scheduleHealthCheck probes conn every interval with a trivial query, each probe
// bounded by one interval. The first failed probe calls onUnhealthy and ends the
// schedule. Canceling the handle waits for the probe goroutine, so onUnhealthy
// never runs after Cancel returns. A non-positive interval schedules nothing.
func scheduleHealthCheck(conn client.Client, interval time.Duration, onUnhealthy func(error)) *Handle {
	if interval <= 0 {
		return newHandle(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, probeCancel := context.WithTimeout(ctx, interval)
				err := conn.Exec(probeCtx, healthProbeStatement)
				probeCancel()

				if err == nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				onUnhealthy(err)
				return
			}
		}
	}()

	return newHandle(func() {
		cancel()
		<-done
	})
}
