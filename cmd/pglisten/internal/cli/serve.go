package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	// Journal back-ends.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/adapters/relica"
	"github.com/coregx/pglisten/cmd/pglisten/internal/api"
	"github.com/coregx/pglisten/cmd/pglisten/internal/config"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with HTTP API and websocket stream",
		Long: `Run a long-lived session that listens on the configured channels,
optionally journals every notification, and serves the REST API:

  POST   /api/v1/notify
  POST   /api/v1/listen
  DELETE /api/v1/listen/{channel}
  GET    /api/v1/channels
  GET    /api/v1/notifications
  GET    /api/v1/health
  GET    /api/v1/stream   (websocket)

Example:
  pglisten serve --config /etc/pglisten.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	logger.Info("🚀 Starting pglisten server v" + api.Version + "...")
	logger.Infof("📝 Target: %s", cfg.Postgres.ClientConfig())
	logger.Infof("   Server: %s:%d", cfg.Server.Host, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := pglisten.NewSession(cfg.Postgres.ClientConfig(), opts.sessionOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	var journal api.JournalReader
	if cfg.Journal.Enabled {
		j, closeDB, err := openJournal(ctx, cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer closeDB()

		defer j.Attach(session.Events()).Cancel()
		journalCtx, stopJournal := context.WithCancel(context.Background())
		journalDone := make(chan struct{})
		go func() {
			defer close(journalDone)
			j.Run(journalCtx, cfg.Journal.FlushInterval)
		}()
		// Stop after the session is closed so the last notifications are written.
		defer func() {
			stopJournal()
			<-journalDone
		}()
		journal = j
	}

	stream := api.NewStream(logger)
	defer stream.Close()
	defer stream.Attach(session.Events()).Cancel()

	errs := session.Events().OnError(func(err error) {
		logger.Errorf("Session error: %v", err)
	})
	defer errs.Cancel()

	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer closeSession(session, logger)
	logger.Info("✅ Session connected")

	for _, ch := range cfg.Session.Channels {
		if err := session.ListenTo(ctx, ch); err != nil {
			return fmt.Errorf("failed to listen on %q: %w", ch, err)
		}
	}

	mux := http.NewServeMux()
	api.NewHandler(session, journal, stream, logger).Routes(mux)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("🌐 HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Server forced to shutdown: %v", err)
	}

	logger.Info("✅ Server stopped gracefully")
	return nil
}

// openJournal connects the journal database, applies the schema if asked and
// builds the Journal on the Relica repository.
func openJournal(ctx context.Context, cfg config.JournalConfig, logger pglisten.Logger) (*pglisten.Journal, func(), error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close journal database: %v", err)
		}
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}
	logger.Infof("✅ Journal database connected (%s)", cfg.Driver)

	if cfg.Migrate {
		if err := pglisten.ApplyMigrations(ctx, db, cfg.Driver); err != nil {
			closeDB()
			return nil, nil, err
		}
	}

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Driver, cfg.Prefix)
	j, err := pglisten.NewJournal(
		pglisten.WithJournalRepository(repos.Journal),
		pglisten.WithJournalLogger(logger),
		pglisten.WithRetention(cfg.Retention),
		pglisten.WithJournalBatchSize(cfg.BatchSize),
	)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return j, closeDB, nil
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger pglisten.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
