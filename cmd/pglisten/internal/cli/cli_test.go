package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/client/clienttest"
)

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pglisten", cmd.Use)

	for _, name := range []string{"serve", "listen", "notify"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	cfgFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfgFlag)
	assert.Equal(t, "c", cfgFlag.Shorthand)
}

func TestNotifyCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"json payload", []string{"notify", "orders", `{"id":42}`}, `NOTIFY "orders", '{"id":42}'`},
		{"no payload", []string{"notify", "orders"}, `NOTIFY "orders"`},
		{"raw payload", []string{"notify", "--raw", "audit", "it's here"}, `NOTIFY "audit", 'it''s here'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := clienttest.NewDialer()
			cmd := newRootCommand(&RootOptions{ClientFactory: d.Factory()})
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			require.Equal(t, 1, d.Count())
			assert.Equal(t, []string{tt.want}, d.Get(1).Queries())
			assert.True(t, d.Get(1).Ended(), "session closed on exit")
		})
	}
}

func TestNotifyCommand_InvalidJSON(t *testing.T) {
	d := clienttest.NewDialer()
	cmd := newRootCommand(&RootOptions{ClientFactory: d.Factory()})
	cmd.SetArgs([]string{"notify", "orders", "not json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--raw")
	assert.Zero(t, d.Count(), "no session is built for a bad payload")
}

func TestNotifyCommand_ConnectFailure(t *testing.T) {
	d := clienttest.NewDialer(func(f *clienttest.Fake) { f.FailConnect(clienttest.ErrInjected) })
	cmd := newRootCommand(&RootOptions{ClientFactory: d.Factory()})
	cmd.SetArgs([]string{"notify", "orders"})

	assert.ErrorIs(t, cmd.Execute(), clienttest.ErrInjected)
}

func TestListenCommand(t *testing.T) {
	d := clienttest.NewDialer()
	cmd := newRootCommand(&RootOptions{ClientFactory: d.Factory()})
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"listen", "orders", "users"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		f := d.Get(1)
		return f != nil && f.CountQuery(`LISTEN "users"`) == 1
	}, 2*time.Second, 5*time.Millisecond)

	conn := d.Get(1)
	assert.Equal(t, 1, conn.CountQuery(`LISTEN "orders"`))
	conn.Emit(client.Notification{ProcessID: 7, Channel: "orders", Payload: `{"id":1}`})
	conn.Emit(client.Notification{ProcessID: 7, Channel: "users"})

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "orders", first["channel"])
	assert.Equal(t, float64(7), first["processId"])
	assert.Equal(t, map[string]any{"id": float64(1)}, first["payload"])
	assert.Equal(t, "users", second["channel"])
	assert.Nil(t, second["payload"])
	assert.True(t, conn.Ended())
}

func TestListenCommand_RequiresChannel(t *testing.T) {
	cmd := newRootCommand(&RootOptions{ClientFactory: clienttest.NewDialer().Factory()})
	cmd.SetArgs([]string{"listen"})

	assert.Error(t, cmd.Execute())
}

func TestLoad_LogFormatFlag(t *testing.T) {
	opts := &RootOptions{LogFormat: "xml"}
	_, err := opts.load()
	assert.Error(t, err)

	opts = &RootOptions{LogFormat: "json", Verbose: true}
	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}
