package pglisten

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/client/clienttest"
	"github.com/coregx/pglisten/retry"
)

func newTestReconnector(d *clienttest.Dialer, policy retry.Policy) *reconnector {
	return &reconnector{
		cfg:     client.Config{Host: "localhost"},
		factory: d.Factory(),
		policy:  policy,
		logger:  &NoopLogger{},
	}
}

func TestReconnector_SucceedsAfterFailures(t *testing.T) {
	d := clienttest.NewDialer(clienttest.RefuseConnect, clienttest.RefuseConnect)
	r := newTestReconnector(d, retry.Policy{Interval: time.Millisecond, Limit: retry.Unlimited})

	var attempts []int
	c, n, err := r.connect(context.Background(), func(a int) { attempts = append(attempts, a) })

	require.NoError(t, err)
	assert.Same(t, d.Get(3), c)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.True(t, d.Get(1).Ended())
	assert.True(t, d.Get(2).Ended())
}

func TestReconnector_TimeoutBound(t *testing.T) {
	d := clienttest.NewDialer()
	d.SetDefault(clienttest.RefuseConnect)
	r := newTestReconnector(d, retry.Policy{
		Interval: 500 * time.Millisecond,
		Limit:    retry.Unlimited,
		Timeout:  100 * time.Millisecond,
	})

	start := time.Now()
	_, _, err := r.connect(context.Background(), nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeReconnectExhausted))
	assert.Contains(t, err.Error(), "timeout reached")
	assert.ErrorIs(t, err, clienttest.ErrInjected)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestReconnector_TimeoutWithShortInterval(t *testing.T) {
	d := clienttest.NewDialer()
	d.SetDefault(clienttest.RefuseConnect)
	r := newTestReconnector(d, retry.Policy{
		Interval: 10 * time.Millisecond,
		Limit:    retry.Unlimited,
		Timeout:  100 * time.Millisecond,
	})

	start := time.Now()
	_, n, err := r.connect(context.Background(), nil)
	elapsed := time.Since(start)

	assert.True(t, IsCode(err, ErrCodeReconnectExhausted))
	assert.Greater(t, n, 1)
	assert.Equal(t, n, d.Count())
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestReconnector_RetryLimit(t *testing.T) {
	d := clienttest.NewDialer()
	d.SetDefault(clienttest.RefuseConnect)
	r := newTestReconnector(d, retry.Policy{Interval: time.Millisecond, Limit: 3})

	var attempts []int
	_, n, err := r.connect(context.Background(), func(a int) { attempts = append(attempts, a) })

	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeReconnectExhausted))
	assert.Contains(t, err.Error(), "retry limit exceeded")
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, 3, d.Count())
}

func TestReconnector_ZeroLimitMakesNoAttempt(t *testing.T) {
	d := clienttest.NewDialer()
	r := newTestReconnector(d, retry.Policy{Limit: 0})

	_, n, err := r.connect(context.Background(), func(int) { t.Error("unexpected attempt") })

	assert.True(t, IsCode(err, ErrCodeReconnectExhausted))
	assert.Zero(t, n)
	assert.Zero(t, d.Count())
}

func TestReconnector_IntervalFuncUsesZeroBasedIndex(t *testing.T) {
	d := clienttest.NewDialer(clienttest.RefuseConnect, clienttest.RefuseConnect)

	var indexes []int
	r := newTestReconnector(d, retry.Policy{
		IntervalFunc: func(i int) time.Duration {
			indexes = append(indexes, i)
			return time.Millisecond
		},
		Limit: retry.Unlimited,
	})

	_, _, err := r.connect(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indexes)
}

func TestReconnector_ContextAbortsWait(t *testing.T) {
	d := clienttest.NewDialer()
	d.SetDefault(clienttest.RefuseConnect)
	r := newTestReconnector(d, retry.Policy{Interval: time.Hour, Limit: retry.Unlimited})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := r.connect(ctx, nil)

	assert.True(t, IsCode(err, ErrCodeReconnectExhausted))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}
