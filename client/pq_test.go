package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPQClient_ExecBeforeConnect(t *testing.T) {
	c := NewPQClient(Config{Host: "localhost"})

	err := c.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, c.Err())
}

func TestPQClient_CloseBeforeConnect(t *testing.T) {
	c := NewPQClient(Config{Host: "localhost"})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
	_, open := <-c.Notifications()
	assert.False(t, open)
	assert.ErrorIs(t, c.Err(), ErrClosed)

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestPQClient_ConnectCanceled(t *testing.T) {
	// 192.0.2.0/24 is TEST-NET-1 and never answers.
	c := NewPQClient(Config{Host: "192.0.2.1", Port: 5432, ConnectTimeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx)
	require.Error(t, err)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after failed connect")
	}
	assert.Error(t, c.Err())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyStarted)
}
