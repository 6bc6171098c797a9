package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/model"
)

const closeTimeout = 5 * time.Second

// ListenOptions holds flags for the listen command.
type ListenOptions struct {
	*RootOptions
	Raw bool
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen <channel>...",
		Short: "Print notifications as JSON lines",
		Long: `Listen on one or more channels and print every notification as a JSON
line on stdout until interrupted. The session reconnects on connection loss
and listens on the same channels again.

Example:
  pglisten listen orders users
  pglisten listen --raw audit | jq .payload`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print payloads as text instead of decoding JSON")

	return cmd
}

func runListen(cmd *cobra.Command, opts *ListenOptions, channels []string) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if opts.Raw {
		cfg.Session.RawPayloads = true
	}
	logger := newLogger(cfg.Log)

	session, err := pglisten.NewSession(cfg.Postgres.ClientConfig(), opts.sessionOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	enc := json.NewEncoder(cmd.OutOrStdout())
	printed := session.Events().OnNotification(func(n model.Notification) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(n); err != nil {
			logger.Errorf("Failed to print notification: %v", err)
		}
	})
	defer printed.Cancel()

	errs := session.Events().OnError(func(err error) {
		logger.Errorf("Session error: %v", err)
	})
	defer errs.Cancel()

	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer closeSession(session, logger)

	for _, ch := range channels {
		if err := session.ListenTo(ctx, ch); err != nil {
			return err
		}
	}
	logger.Infof("Listening on %s", strings.Join(channels, ", "))

	<-ctx.Done()
	return nil
}

// commandContext returns the command context, or a background one when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func closeSession(session *pglisten.Session, logger pglisten.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := session.Close(ctx); err != nil {
		logger.Warnf("Session close: %v", err)
	}
}
