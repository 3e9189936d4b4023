// Package pipeline drives the per-event sequence that turns a
// CardCreated event into stored artwork and an on-chain image URL:
//
//	poll → dedup gate → fetch card → synthesize → store blob → write back
//
// One long-lived goroutine owns the loop. Events inside a batch are
// processed sequentially, in feed order, so per-card logs stay
// coherent and no two writes ever contend on the same card. A failed
// event is logged, counted and marked handled; it never blocks the
// loop or the rest of its batch.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cardforge/cardforge/internal/card"
	"github.com/cardforge/cardforge/internal/forge"
	"github.com/cardforge/cardforge/internal/log"
	"github.com/cardforge/cardforge/internal/metrics"
	"github.com/cardforge/cardforge/internal/sui"
	"github.com/cardforge/cardforge/internal/walrus"
)

// EventSource polls the chain's event log.
type EventSource interface {
	QueryEvents(ctx context.Context, eventType string, limit int, descending bool) ([]sui.Event, error)
}

// CardReader reads the authoritative card record.
type CardReader interface {
	GetCard(ctx context.Context, cardID string) (*card.Card, error)
}

// CardUpdater performs the single write-back: attaching the artwork
// URL to the card.
type CardUpdater interface {
	UpdateCardImageURL(ctx context.Context, cardID, url string) (string, error)
}

// Synthesizer generates artwork bytes for a card.
type Synthesizer interface {
	GenerateArtwork(ctx context.Context, c *card.Card, description string, reference []byte) ([]byte, error)
}

// BlobStore persists bytes to content-addressed storage.
type BlobStore interface {
	Store(ctx context.Context, blob []byte, opts walrus.StoreOptions) (*walrus.StoreResult, error)
	URL(blobID string) string
}

// Ledger gates reprocessing of already-attempted events.
type Ledger interface {
	Has(id string) bool
	MarkHandled(ctx context.Context, id string) error
	Prime(ctx context.Context, ids []string) (int, error)
}

// Deps are the pipeline's collaborators. A *sui.Client satisfies
// EventSource, CardReader and CardUpdater at once.
type Deps struct {
	Source  EventSource
	Cards   CardReader
	Updater CardUpdater
	Synth   Synthesizer
	Blobs   BlobStore
	Ledger  Ledger
	Logger  log.Logger
}

// Config holds the loop's tunables.
type Config struct {
	// EventType is the fully qualified move event type to poll for.
	EventType string

	// PollInterval is the sleep after a successful poll cycle;
	// PollErrorInterval after a failed one. Constant intervals, not
	// exponential: the feed is cheap to poll and low-rate.
	PollInterval      time.Duration
	PollErrorInterval time.Duration

	// PollLimit bounds events per poll; PrimeLimit bounds the backlog
	// marked handled at startup.
	PollLimit  int
	PrimeLimit int

	// ReferenceDir holds per-rarity style reference images.
	ReferenceDir string

	// StoreOptions are applied to every blob upload.
	StoreOptions walrus.StoreOptions
}

// Watcher is the orchestrator.
type Watcher struct {
	deps Deps
	cfg  Config
	log  log.Logger
}

// New creates a Watcher. All collaborators are required.
func New(deps Deps, cfg Config) (*Watcher, error) {
	if deps.Source == nil || deps.Cards == nil || deps.Updater == nil ||
		deps.Synth == nil || deps.Blobs == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("all pipeline dependencies are required")
	}
	if cfg.EventType == "" {
		return nil, fmt.Errorf("event type is required")
	}
	if cfg.PollInterval <= 0 || cfg.PollErrorInterval <= 0 || cfg.PollLimit <= 0 {
		return nil, fmt.Errorf("poll intervals and limit must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Watcher{deps: deps, cfg: cfg, log: logger}, nil
}

// prime marks the recent event backlog as handled so the loop only
// reacts to cards created after startup. Skipping the backlog is the
// intended behavior, not a best-effort shortcut; the ledger also
// persists these ids so a restart keeps skipping them. Only Run may
// prime: a second pass would swallow events created in between.
func (w *Watcher) prime(ctx context.Context) error {
	if w.cfg.PrimeLimit <= 0 {
		return nil
	}
	events, err := w.deps.Source.QueryEvents(ctx, w.cfg.EventType, w.cfg.PrimeLimit, true)
	if err != nil {
		return fmt.Errorf("listing event backlog: %w", err)
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID.String())
	}
	marked, err := w.deps.Ledger.Prime(ctx, ids)
	if err != nil {
		return fmt.Errorf("priming ledger: %w", err)
	}
	w.log.Info("existing events marked handled", "backlog", len(ids), "newly_marked", marked)
	return nil
}

// Run primes the ledger once and polls until ctx is cancelled.
// Poll-level errors are logged and retried after the error interval;
// they never terminate the loop. Returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.prime(ctx); err != nil {
		// Losing the priming step would make the loop chew through the
		// whole backlog, so treat it as fatal at startup.
		return err
	}

	w.log.Info("watching for new cards",
		"event_type", w.cfg.EventType,
		"poll_interval", w.cfg.PollInterval)

	for {
		interval := w.cfg.PollInterval

		events, err := w.deps.Source.QueryEvents(ctx, w.cfg.EventType, w.cfg.PollLimit, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.PollErrors.Inc()
			w.log.Error("event poll failed", "error", err)
			interval = w.cfg.PollErrorInterval
		} else {
			w.handleBatch(ctx, events)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// handleBatch processes one poll's events sequentially in feed order.
// Cancellation is honored between events; the in-flight event always
// runs to completion or terminal failure.
func (w *Watcher) handleBatch(ctx context.Context, events []sui.Event) {
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}

		id := ev.ID.String()
		metrics.EventsObserved.Inc()
		if w.deps.Ledger.Has(id) {
			metrics.EventsDeduplicated.Inc()
			continue
		}

		start := time.Now()
		if err := w.processEvent(ctx, ev); err != nil {
			stage := stageOf(err)
			metrics.EventsFailed.WithLabelValues(stage).Inc()
			w.log.Error("card processing failed",
				"event_id", id,
				"stage", stage,
				"error", err)
		} else {
			metrics.EventsProcessed.Inc()
			metrics.EventDuration.Observe(time.Since(start).Seconds())
		}

		// Handled means attempted. Failures are not retried across
		// poll cycles; a systematically broken card must not be able
		// to stall the feed.
		if err := w.deps.Ledger.MarkHandled(ctx, id); err != nil {
			w.log.Error("marking event handled failed", "event_id", id, "error", err)
		}
	}
}

// processEvent runs one event through every stage. It is the failure
// isolation boundary: nothing escapes it, panics included.
func (w *Watcher) processEvent(ctx context.Context, ev sui.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &stageError{stage: "panic", err: fmt.Errorf("panic: %v", r)}
		}
	}()

	created, decodeErr := card.DecodeCreatedEvent(ev.ParsedJSON)
	if decodeErr != nil {
		return &stageError{stage: "decode", err: decodeErr}
	}

	w.log.Info("new card detected",
		"event_id", ev.ID.String(),
		"card_id", created.CardID,
		"name", created.Name,
		"element", created.Element,
		"rarity", created.Rarity.String())

	c, fetchErr := w.deps.Cards.GetCard(ctx, created.CardID)
	if fetchErr != nil {
		return &stageError{stage: "fetch", err: fetchErr}
	}

	reference, refErr := forge.LoadReference(w.cfg.ReferenceDir, c.Rarity)
	if refErr != nil {
		// A corrupt reference costs the style anchor, not the card.
		w.log.Warn("reference image unavailable", "rarity", c.Rarity.String(), "error", refErr)
		reference = nil
	}

	artwork, synthErr := w.deps.Synth.GenerateArtwork(ctx, c, created.Prompt, reference)
	if synthErr != nil {
		return &stageError{stage: "synthesize", err: synthErr}
	}

	stored, storeErr := w.deps.Blobs.Store(ctx, artwork, w.cfg.StoreOptions)
	if storeErr != nil {
		return &stageError{stage: "store", err: storeErr}
	}

	url := w.deps.Blobs.URL(stored.BlobID)
	digest, updateErr := w.deps.Updater.UpdateCardImageURL(ctx, created.CardID, url)
	if updateErr != nil {
		return &stageError{stage: "writeback", err: updateErr}
	}

	w.log.Info("card fully processed",
		"card_id", created.CardID,
		"blob_id", stored.BlobID,
		"url", url,
		"digest", digest)
	return nil
}

// stageError tags an error with the pipeline stage it came from.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error { return e.err }

func stageOf(err error) string {
	if se, ok := err.(*stageError); ok {
		return se.stage
	}
	return "unknown"
}
