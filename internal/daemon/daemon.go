package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lockin-app/lockin/internal/api"
	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/domain"
	"github.com/lockin-app/lockin/internal/health"
	"github.com/lockin-app/lockin/internal/infra/firestore"
	"github.com/lockin-app/lockin/internal/infra/postgres"
	"github.com/lockin-app/lockin/internal/infra/sqlite"
)

// Daemon is the Lock In server runtime. It wires together all services.
type Daemon struct {
	Config Config
	Store  domain.ProgressionStore
	Engine *engagement.Engine
	Server *api.Server
	Health *health.Checker

	logFile io.Closer
	cancel  context.CancelFunc
}

// New creates and initializes a Daemon from the loaded configuration.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logFile, err := SetupLogging(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("open store: %w", err)
	}

	eng, err := NewEngine(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	srv := api.NewServer(eng)
	if cfg.Server.Metrics {
		srv.EnableMetrics()
	}
	srv.SetRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	srv.SetTimeout(parseDuration(cfg.Server.Timeout, 30*time.Second))

	dataDir := ""
	if cfg.Store.Backend == BackendSQLite {
		dataDir = sqliteDir(cfg.Store)
	}
	checker := health.NewChecker(store, dataDir)
	checker.SetInterval(parseDuration(cfg.Health.Interval, health.DefaultInterval))
	srv.SetHealthChecker(checker)

	return &Daemon{
		Config:  cfg,
		Store:   store,
		Engine:  eng,
		Server:  srv,
		Health:  checker,
		logFile: logFile,
	}, nil
}

// OpenStore opens the configured progression store backend.
func OpenStore(ctx context.Context, sc StoreConfig) (domain.ProgressionStore, error) {
	switch sc.Backend {
	case BackendSQLite, "":
		return sqlite.Open(sqliteDir(sc))
	case BackendPostgres:
		return postgres.Open(ctx, sc.Postgres.URL, postgres.PoolOptions{
			MaxConns:        sc.Postgres.MaxConns,
			MinConns:        sc.Postgres.MinConns,
			MaxConnLifetime: parseDuration(sc.Postgres.MaxConnLifetime, time.Hour),
			MaxConnIdleTime: parseDuration(sc.Postgres.MaxConnIdleTime, 30*time.Minute),
		})
	case BackendFirestore:
		return firestore.Open(ctx, firestore.Config{
			ProjectID:         sc.Firestore.ProjectID,
			CredentialsFile:   sc.Firestore.CredentialsFile,
			CredentialsBase64: sc.Firestore.CredentialsBase64,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// NewEngine builds the reward engine over store with cfg's engine settings.
func NewEngine(cfg Config, store domain.ProgressionStore) (*engagement.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return engagement.NewEngine(store,
		engagement.WithLocation(loc),
		engagement.WithCascadeLimit(cfg.Engine.CascadeLimit),
		engagement.WithDebug(cfg.Logging.Level == "debug"),
	), nil
}

// SetupLogging tees the standard logger into cfg.File when set.
// The returned closer is nil when no file is opened.
func SetupLogging(cfg LoggingConfig) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if cfg.File == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

func sqliteDir(sc StoreConfig) string {
	if sc.SQLiteDir != "" {
		return sc.SQLiteDir
	}
	return lockinHome()
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Background services
	go d.Health.Run(ctx)
	go d.Server.RunJanitor(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.Server.Host, d.Config.Server.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[daemon] received %s, shutting down", sig)
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[daemon] http shutdown: %v", err)
		}
		cancel()
	}()

	log.Printf("[daemon] serving on http://%s (store: %s, timezone: %s)",
		addr, d.Config.Store.Backend, d.Engine.Location())
	if d.Config.Server.Metrics {
		log.Printf("[daemon] metrics on http://%s/metrics", addr)
	}

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			log.Printf("[daemon] close store: %v", err)
		}
	}
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
}
