package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/model"
)

// NotifyOptions holds flags for the notify command.
type NotifyOptions struct {
	*RootOptions
	Raw bool
}

// NewNotifyCommand creates the notify command.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notify <channel> [payload]",
		Short: "Publish one notification",
		Long: `Publish a notification on a channel. The payload must be JSON unless
--raw is given, in which case it is sent as-is. Without a payload the
NOTIFY carries none.

Example:
  pglisten notify orders '{"id":42}'
  pglisten notify --raw audit 'user logged in'
  pglisten notify cache_flush`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "send the payload text without JSON encoding")

	return cmd
}

func runNotify(cmd *cobra.Command, opts *NotifyOptions, args []string) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	payload := model.NoPayload()
	sessionOpts := opts.sessionOptions(cfg, logger)
	if len(args) == 2 {
		if opts.Raw {
			payload = model.PayloadOf(args[1])
			sessionOpts = append(sessionOpts, pglisten.WithSerialize(rawSerialize))
		} else {
			var v any
			if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
				return fmt.Errorf("payload is not valid JSON (use --raw to send text): %w", err)
			}
			payload = model.PayloadOf(v)
		}
	}

	session, err := pglisten.NewSession(cfg.Postgres.ClientConfig(), sessionOpts...)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer closeSession(session, logger)

	if err := session.Notify(ctx, args[0], payload); err != nil {
		return err
	}
	logger.Debugf("Notified %q", args[0])
	return nil
}

// rawSerialize sends string payloads verbatim.
func rawSerialize(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("raw payload must be a string, got %T", v)
	}
	return s, nil
}
