// Package cli implements the pglisten command line.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/adapters/zlog"
	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/cmd/pglisten/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string // overrides log.format when set

	// ClientFactory overrides the PostgreSQL client (for testing).
	ClientFactory client.Factory
}

// NewRootCommand creates the root command for the pglisten CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pglisten",
		Short: "Resilient PostgreSQL LISTEN/NOTIFY client",
		Long: `pglisten keeps a LISTEN/NOTIFY session alive across connection loss.

It reconnects under a bounded retry policy, restores every channel it was
listening on, and can journal received notifications to MySQL, PostgreSQL
or SQLite while serving them over HTTP and websocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (console|json)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListenCommand(opts))
	cmd.AddCommand(NewNotifyCommand(opts))

	return cmd
}

// load reads the configuration and applies the global flags.
func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-format: %w", err)
		}
	}
	return cfg, nil
}

// newLogger builds the zerolog-backed logger; logs go to stderr so stdout
// stays free for command output.
func newLogger(cfg config.LogConfig) *zlog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Format == "json" {
		return zlog.NewJSON(os.Stderr, "pglisten", level)
	}
	return zlog.NewConsole(os.Stderr, "pglisten", level)
}

// sessionOptions translates the configuration into session options.
func (o *RootOptions) sessionOptions(cfg *config.Config, logger pglisten.Logger) []pglisten.Option {
	opts := []pglisten.Option{
		pglisten.WithName(cfg.Session.Name),
		pglisten.WithLogger(logger),
		pglisten.WithAlerts(pglisten.NewLoggingAlertService(logger)),
		pglisten.WithHealthCheckInterval(cfg.Session.HealthCheckInterval),
		pglisten.WithRetryPolicy(cfg.Session.RetryPolicy()),
	}
	if cfg.Session.RawPayloads {
		opts = append(opts, pglisten.WithParse(pglisten.RawParse))
	}
	if o.ClientFactory != nil {
		opts = append(opts, pglisten.WithClientFactory(o.ClientFactory))
	}
	return opts
}
