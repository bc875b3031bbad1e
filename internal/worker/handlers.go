package worker

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/thebtf/travelprompt/internal/catalog"
	"github.com/thebtf/travelprompt/internal/destinations"
	"github.com/thebtf/travelprompt/internal/hydrate"
	"github.com/thebtf/travelprompt/internal/insights"
	"github.com/thebtf/travelprompt/internal/search"
	"github.com/thebtf/travelprompt/internal/worker/sse"
	"github.com/thebtf/travelprompt/pkg/models"
)

const errPromptNotFound = "prompt not found"

// promptItem is a catalog entry plus its ready-to-copy text and, for
// routable entries, its absolute page link.
type promptItem struct {
	models.PromptEntry
	QuickCopy string `json:"quickCopy"`
	URL       string `json:"url,omitempty"`
}

func (s *Service) item(p models.PromptEntry) promptItem {
	it := promptItem{PromptEntry: p, QuickCopy: hydrate.QuickCopy(p.PromptTemplate)}
	if p.Routable() {
		it.URL = strings.TrimRight(s.config.SiteURL, "/") + "/prompts/" + url.PathEscape(p.Slug)
	}
	return it
}

type listResponse struct {
	Query      string          `json:"query,omitempty"`
	Category   models.Category `json:"category"`
	Prompts    []promptItem    `json:"prompts"`
	TotalCount int             `json:"total_count"`
	Filtered   bool            `json:"filtered"`
}

type renderRequest struct {
	Values map[string]string `json:"values"`
	Mode   string            `json:"mode"`
}

type renderResponse struct {
	Text    string   `json:"text"`
	Missing []string `json:"missing"`
}

type openRequest struct {
	Destination string            `json:"destination"`
	Values      map[string]string `json:"values"`
	Mode        string            `json:"mode"`
}

type openResponse struct {
	URL      string `json:"url"`
	Prefills bool   `json:"prefills"`
	Text     string `json:"text"`
}

type eventRequest struct {
	Name    models.EventName `json:"name"`
	Payload json.RawMessage  `json:"payload"`
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ready"
	if !s.ready.Load() {
		status = "starting"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"version":  s.version,
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
		"prompts":  s.catalog.Len(),
		"tracking": s.recorder.Durable(),
		"streams":  s.sseBroadcaster.ClientCount(),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "service starting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleCategories(w http.ResponseWriter, _ *http.Request) {
	counts := s.catalog.CountByCategory()
	type category struct {
		Name  models.Category `json:"name"`
		Count int             `json:"count"`
	}
	out := make([]category, 0, len(models.Categories))
	for _, c := range models.Categories {
		out = append(out, category{Name: c, Count: counts[c]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleDestinations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, destinations.Describe(s.destinations))
}

func (s *Service) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	category, ok := search.ParseCategory(r.URL.Query().Get("category"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}

	result := s.searchManager.Search(search.Params{
		Query:    r.URL.Query().Get("q"),
		Category: category,
	})

	items := make([]promptItem, 0, len(result.Prompts))
	for _, p := range result.Prompts {
		items = append(items, s.item(p))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Query:      result.Query,
		Category:   result.Category,
		Prompts:    items,
		TotalCount: result.TotalCount,
		Filtered:   result.Filtered,
	})
}

func (s *Service) handleGetPromptBySlug(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.BySlug(chi.URLParam(r, "id"))
	s.writePrompt(w, entry, err)
}

func (s *Service) handleGetPromptByID(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.ByID(chi.URLParam(r, "id"))
	s.writePrompt(w, entry, err)
}

func (s *Service) writePrompt(w http.ResponseWriter, entry models.PromptEntry, err error) {
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.item(entry))
}

func (s *Service) handleRenderPrompt(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.ByID(chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	req, ok := readJSON[renderRequest](w, r)
	if !ok {
		return
	}

	missing := hydrate.Missing(entry.PromptTemplate, req.Values)
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, renderResponse{
		Text:    hydrate.Hydrate(entry.PromptTemplate, req.Values, hydrate.ParseMode(req.Mode)),
		Missing: missing,
	})
}

func (s *Service) handleOpenPrompt(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.ByID(chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	req, ok := readJSON[openRequest](w, r)
	if !ok {
		return
	}
	dest := s.lookupDestination(req.Destination)
	if dest == nil {
		writeError(w, http.StatusBadRequest, "unknown destination")
		return
	}

	text := hydrate.Hydrate(entry.PromptTemplate, req.Values, hydrate.ParseMode(req.Mode))
	s.Track(r.Context(), models.NewEvent(models.OutboundClickPayload{
		Slug:        entry.TrackingKey(),
		Destination: dest.Name(),
		Variables:   req.Values,
	}))

	writeJSON(w, http.StatusOK, openResponse{
		URL:      dest.BuildURL(text),
		Prefills: dest.Prefills(),
		Text:     text,
	})
}

func (s *Service) lookupDestination(name string) destinations.Destination {
	d, err := destinations.Lookup(name)
	if err != nil {
		return nil
	}
	for _, enabled := range s.destinations {
		if enabled.Name() == d.Name() {
			return d
		}
	}
	return nil
}

func (s *Service) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[eventRequest](w, r)
	if !ok {
		return
	}
	event, err := models.ParseEvent(req.Name, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Track(r.Context(), event)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.recorder.Events(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read usage log")
		return
	}
	if limit := parseLimitParam(r, 0); limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":  events,
		"durable": s.recorder.Durable(),
	})
}

func (s *Service) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.recorder.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear usage log")
		return
	}
	s.sseBroadcaster.Broadcast(sse.EventCleared, map[string]bool{"cleared": true})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleInsights(w http.ResponseWriter, r *http.Request) {
	events, err := s.recorder.Events(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read usage log")
		return
	}
	writeJSON(w, http.StatusOK, insights.Build(events).Top())
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, errPromptNotFound)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
