package usage

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/travelprompt/pkg/models"
)

// Provider receives every tracked event.
type Provider interface {
	Track(ctx context.Context, event models.Event)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, event models.Event)

// Track calls f.
func (f ProviderFunc) Track(ctx context.Context, event models.Event) {
	f(ctx, event)
}

// Tracker fans events out to a fixed list of providers. Tracking never
// fails from the caller's point of view.
type Tracker struct {
	providers []Provider
}

// NewTracker creates a tracker over providers, called in order.
func NewTracker(providers ...Provider) *Tracker {
	return &Tracker{providers: providers}
}

// Track sends event to every provider.
func (t *Tracker) Track(ctx context.Context, event models.Event) {
	for _, p := range t.providers {
		p.Track(ctx, event)
	}
}

// ConsoleProvider logs events at debug level.
func ConsoleProvider() Provider {
	return ProviderFunc(func(_ context.Context, event models.Event) {
		log.Debug().
			Str("event", string(event.Name)).
			Interface("payload", event.Payload).
			Msg("analytics")
	})
}

// StorageProvider appends events to the recorder's log. Storage failures
// are logged and dropped.
func StorageProvider(r *Recorder) Provider {
	return ProviderFunc(func(ctx context.Context, event models.Event) {
		if _, err := r.Record(ctx, event); err != nil {
			log.Warn().Err(err).Str("event", string(event.Name)).Msg("Failed to record usage event")
		}
	})
}
