package pglisten

import (
	"context"
	"sync"
)

// recordingAlerts counts alert calls.
type recordingAlerts struct {
	mu        sync.Mutex
	exhausted []error
	decode    []string
	restored  []int
}

func newRecordingAlerts() *recordingAlerts {
	return &recordingAlerts{}
}

func (a *recordingAlerts) NotifyReconnectExhausted(_ context.Context, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exhausted = append(a.exhausted, err)
	return nil
}

func (a *recordingAlerts) NotifyDecodeFailure(_ context.Context, channel string, _ error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decode = append(a.decode, channel)
	return nil
}

func (a *recordingAlerts) NotifyReconnected(_ context.Context, attempts int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.restored = append(a.restored, attempts)
	return nil
}

func (a *recordingAlerts) decodeFailures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.decode)
}

func (a *recordingAlerts) exhaustions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.exhausted)
}

func (a *recordingAlerts) reconnections() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.restored...)
}
