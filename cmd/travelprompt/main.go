// Package main runs the travelprompt HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/thebtf/travelprompt/internal/catalog"
	"github.com/thebtf/travelprompt/internal/config"
	dbgorm "github.com/thebtf/travelprompt/internal/db/gorm"
	"github.com/thebtf/travelprompt/internal/usage"
	"github.com/thebtf/travelprompt/internal/watcher"
	"github.com/thebtf/travelprompt/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Port to listen on (default from settings)")
	dbPath := flag.String("db", "", "Event database path (default: ~/.travelprompt/travelprompt.db)")
	noTracking := flag.Bool("no-tracking", false, "Disable usage tracking; events are discarded")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *noTracking {
		cfg.Tracking = false
	}

	cat, err := catalog.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load prompt catalog")
	}
	for _, issue := range cat.Validate() {
		log.Warn().Str("prompt", issue.EntryID).Str("key", issue.Key).Msg(issue.Problem)
	}

	events := newEventStore(cfg)
	if cfg.Tracking {
		if err := events.open(); err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open event store")
		}
	}
	defer events.close()

	svc := worker.New(worker.Options{
		Version:  Version,
		Config:   cfg,
		Catalog:  cat,
		Recorder: events.recorder,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", Version).
			Int("prompts", cat.Len()).
			Bool("tracking", events.recorder.Durable()).
			Msg("Starting travelprompt")
		svc.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		svc.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	startWatchers(gctx, g, cfg, events)

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

// eventStore owns the sqlite store behind the recorder and can reopen it.
type eventStore struct {
	cfg      *config.Config
	recorder *usage.Recorder

	mu    sync.Mutex
	store *dbgorm.Store
}

func newEventStore(cfg *config.Config) *eventStore {
	return &eventStore{cfg: cfg, recorder: usage.NewRecorder(nil)}
}

// open connects to the database and points the recorder at it.
func (e *eventStore) open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := dbgorm.NewStore(dbgorm.Config{
		Path:     e.cfg.DBPath,
		Driver:   e.cfg.DBDriver,
		MaxConns: e.cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		return err
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	e.store = store
	e.recorder.SetStore(dbgorm.NewKVStore(store))
	return nil
}

// close detaches the recorder and closes the database.
func (e *eventStore) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recorder.SetStore(nil)
	if e.store != nil {
		_ = e.store.Close()
		e.store = nil
	}
}

// startWatchers reopens the event store when its file is deleted and
// reloads settings when settings.json changes.
func startWatchers(ctx context.Context, g *errgroup.Group, cfg *config.Config, events *eventStore) {
	dbWatcher, err := watcher.New(cfg.DBPath, watcher.OnDelete(func() {
		if !events.recorder.Durable() {
			return
		}
		log.Warn().Str("path", cfg.DBPath).Msg("Event database deleted, reopening")
		if err := events.open(); err != nil {
			log.Error().Err(err).Msg("Failed to reopen event database, tracking disabled")
			events.close()
		}
	}))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create database watcher")
	} else {
		g.Go(func() error { return dbWatcher.Run(ctx) })
		log.Info().Str("path", cfg.DBPath).Msg("Database file watcher started")
	}

	settingsPath := config.SettingsPath()
	settingsWatcher, err := watcher.New(settingsPath, watcher.OnChange(func() {
		next, err := config.Reload()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to reload settings")
			return
		}
		applySettings(cfg, next, events)
	}))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return
	}
	g.Go(func() error { return settingsWatcher.Run(ctx) })
	log.Info().Str("path", settingsPath).Msg("Settings file watcher started")
}

// applySettings applies what can change at runtime. Listener and storage
// settings need a restart.
func applySettings(current, next *config.Config, events *eventStore) {
	if next.Addr() != current.Addr() || next.DBPath != current.DBPath || next.DBDriver != current.DBDriver {
		log.Warn().
			Str("addr", next.Addr()).
			Str("db", next.DBPath).
			Str("driver", next.DBDriver).
			Msg("Listener or database settings changed, restart to apply")
	}

	if next.Tracking == events.recorder.Durable() {
		return
	}
	if !next.Tracking {
		events.close()
		log.Info().Msg("Usage tracking disabled")
		return
	}
	if err := events.open(); err != nil {
		log.Error().Err(err).Msg("Failed to enable usage tracking")
		return
	}
	log.Info().Str("path", current.DBPath).Msg("Usage tracking enabled")
}
