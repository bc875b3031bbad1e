// Package usage records prompt interactions in a local append-only log and
// exposes the log to the insights view.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/thebtf/travelprompt/pkg/models"
)

// StorageKey is the single key the whole event log is stored under.
const StorageKey = "prompt_events"

// TimestampLayout renders UTC timestamps with millisecond precision and a
// trailing Z, e.g. 2024-05-01T09:30:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// KV is the durable key-value store behind the log. Get reports ok=false
// when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// RecordFunc is called after an event has been appended.
type RecordFunc func(ctx context.Context, event models.StoredEvent)

// Recorder appends events to a log kept in a KV store. A Recorder with a nil
// store is inert: appends are dropped and reads return an empty log.
//
// The log is rewritten wholesale on every append; a mutex serializes the
// read-modify-write cycle.
type Recorder struct {
	kv       KV
	now      func() time.Time
	onRecord RecordFunc
	counter  metric.Int64Counter
	mu       sync.Mutex
}

// NewRecorder creates a recorder on top of kv, which may be nil.
func NewRecorder(kv KV) *Recorder {
	counter, err := otel.Meter("github.com/thebtf/travelprompt/internal/usage").Int64Counter(
		"travelprompt.usage.events",
		metric.WithDescription("Usage events recorded, by event name."),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create usage counter, metrics disabled")
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter("travelprompt.usage.events")
	}
	return &Recorder{
		kv:      kv,
		now:     time.Now,
		counter: counter,
	}
}

// Durable reports whether the recorder has a backing store.
func (r *Recorder) Durable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kv != nil
}

// SetStore swaps the backing store. A nil kv makes the recorder inert.
func (r *Recorder) SetStore(kv KV) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kv = kv
}

// SetRecordFunc sets the callback invoked after each successful append.
func (r *Recorder) SetRecordFunc(fn RecordFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecord = fn
}

// Record appends one event stamped with the current time. Without a store
// it is a no-op that returns the stamped event and no error.
func (r *Recorder) Record(ctx context.Context, event models.Event) (models.StoredEvent, error) {
	stored := models.StoredEvent{
		Name:      event.Name,
		Payload:   event.Payload,
		Timestamp: r.now().UTC().Format(TimestampLayout),
	}
	if id, err := uuid.NewV7(); err == nil {
		stored.ID = id.String()
	}

	r.mu.Lock()
	if r.kv == nil {
		r.mu.Unlock()
		return stored, nil
	}
	events, err := r.load(ctx)
	if err != nil {
		r.mu.Unlock()
		return stored, err
	}
	events = append(events, stored)

	data, err := json.Marshal(events)
	if err != nil {
		r.mu.Unlock()
		return stored, fmt.Errorf("encode usage log: %w", err)
	}
	if err := r.kv.Put(ctx, StorageKey, data); err != nil {
		r.mu.Unlock()
		return stored, fmt.Errorf("write usage log: %w", err)
	}
	onRecord := r.onRecord
	r.mu.Unlock()

	r.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(stored.Name))))
	if onRecord != nil {
		onRecord(ctx, stored)
	}
	return stored, nil
}

// Events returns the whole log, oldest first. Missing or unreadable data is
// an empty log and unreadable elements are skipped; only store I/O failures
// are returned as errors.
func (r *Recorder) Events(ctx context.Context) ([]models.StoredEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kv == nil {
		return []models.StoredEvent{}, nil
	}
	return r.load(ctx)
}

// Clear truncates the log by removing its key.
func (r *Recorder) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kv == nil {
		return nil
	}
	if err := r.kv.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear usage log: %w", err)
	}
	return nil
}

// load reads and decodes the log. Callers hold r.mu.
func (r *Recorder) load(ctx context.Context) ([]models.StoredEvent, error) {
	raw, ok, err := r.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read usage log: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []models.StoredEvent{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("Usage log is unreadable, treating as empty")
		return []models.StoredEvent{}, nil
	}

	// A bad element costs only itself; the rest of the history is kept.
	events := make([]models.StoredEvent, 0, len(elems))
	for i, elem := range elems {
		var e models.StoredEvent
		if err := json.Unmarshal(elem, &e); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping unreadable usage event")
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
