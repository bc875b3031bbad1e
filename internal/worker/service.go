// Package worker serves the prompt catalog, the usage log and the embedded
// UI over HTTP.
package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/travelprompt/internal/catalog"
	"github.com/thebtf/travelprompt/internal/config"
	"github.com/thebtf/travelprompt/internal/destinations"
	"github.com/thebtf/travelprompt/internal/search"
	"github.com/thebtf/travelprompt/internal/usage"
	"github.com/thebtf/travelprompt/internal/worker/sse"
	"github.com/thebtf/travelprompt/pkg/models"
)

// RequestTimeout bounds every non-streaming request.
const RequestTimeout = 30 * time.Second

// Service wires the catalog, search, usage log and SSE stream into a router.
type Service struct {
	version        string
	config         *config.Config
	catalog        *catalog.Catalog
	searchManager  *search.Manager
	recorder       *usage.Recorder
	tracker        *usage.Tracker
	destinations   []destinations.Destination
	sseBroadcaster *sse.Broadcaster
	router         chi.Router
	startTime      time.Time
	ready          atomic.Bool
}

// Options configures a Service.
type Options struct {
	Version  string
	Config   *config.Config
	Catalog  *catalog.Catalog
	Recorder *usage.Recorder
}

// New builds a Service. It is not ready until SetReady(true) is called.
func New(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.MustDefault()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = usage.NewRecorder(nil)
	}

	svc := &Service{
		version:        opts.Version,
		config:         cfg,
		catalog:        cat,
		searchManager:  search.NewManager(cat),
		recorder:       recorder,
		tracker:        usage.NewTracker(usage.ConsoleProvider(), usage.StorageProvider(recorder)),
		destinations:   destinations.Enabled(cfg.Destinations),
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		startTime:      time.Now(),
	}

	recorder.SetRecordFunc(func(_ context.Context, e models.StoredEvent) {
		svc.sseBroadcaster.Broadcast(sse.EventRecorded, e)
	})

	svc.setupRoutes()
	return svc
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// SetReady toggles whether API routes accept requests.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Recorder returns the usage recorder.
func (s *Service) Recorder() *usage.Recorder {
	return s.recorder
}

// Track records an event through the console and storage providers.
func (s *Service) Track(ctx context.Context, event models.Event) {
	s.tracker.Track(ctx, event)
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/", serveIndex)
	r.Get("/prompts", serveIndex)
	r.Get("/prompts/*", serveIndex)
	r.Get("/insights", serveIndex)
	r.Get("/assets/*", serveAssets)

	r.Get("/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/version", s.handleVersion)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireReady)

		// Streams stay open, so they are outside the timeout group.
		r.Get("/events/stream", s.sseBroadcaster.HandleSSE)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(RequestTimeout))

			r.Get("/categories", s.handleCategories)
			r.Get("/destinations", s.handleDestinations)

			r.Get("/prompts", s.handleListPrompts)
			r.Get("/prompts/id/{id}", s.handleGetPromptByID)
			r.Get("/prompts/{id}", s.handleGetPromptBySlug)
			r.Post("/prompts/{id}/render", s.handleRenderPrompt)
			r.Post("/prompts/{id}/open", s.handleOpenPrompt)

			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleTrackEvent)
			r.Delete("/events", s.handleClearEvents)

			r.Get("/insights", s.handleInsights)
		})
	})

	log.Debug().Int("prompts", s.catalog.Len()).Msg("Routes registered")
}
