// Package ingest implements the ingest endpoint (C6): schema validation,
// enrichment, scoring, and durable dedup-aware persistence for one event.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/htpot/collector/internal/apperr"
	"github.com/htpot/collector/internal/core/observability"
	"github.com/htpot/collector/internal/eventschema"
	"github.com/htpot/collector/internal/geo"
	"github.com/htpot/collector/internal/hotness"
	"github.com/htpot/collector/internal/scoring"
	"github.com/htpot/collector/internal/store"
)

// Publisher streams scored events downstream (e.g. to Kafka). It is
// optional and best-effort: a publish failure is logged but never fails the
// HTTP response.
type Publisher interface {
	Publish(ctx context.Context, e eventschema.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, eventschema.Event) error { return nil }

type Handler struct {
	logger   *slog.Logger
	enricher geo.Enricher
	ensemble *scoring.Ensemble
	store    store.Store
	hotness  hotness.Interface
	pub      Publisher

	gate       *backpressureGate
	recent     *recentHashCache
	deadline   time.Duration
}

type Config struct {
	RequestDeadline       time.Duration
	BackpressureHighWater int
	RecentCacheSize       int
}

func NewHandler(logger *slog.Logger, enricher geo.Enricher, ensemble *scoring.Ensemble, st store.Store, ht hotness.Interface, pub Publisher, cfg Config) *Handler {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Handler{
		logger:   logger,
		enricher: enricher,
		ensemble: ensemble,
		store:    st,
		hotness:  ht,
		pub:      pub,
		gate:     newBackpressureGate(cfg.BackpressureHighWater),
		recent:   newRecentHashCache(cfg.RecentCacheSize),
		deadline: cfg.RequestDeadline,
	}
}

type ackResponse struct {
	Accepted  bool                `json:"accepted"`
	Inserted  bool                `json:"inserted"`
	Duplicate bool                `json:"duplicate"`
	Score     eventschema.Score   `json:"score"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline)
	defer cancel()

	var raw eventschema.RawEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, eventschema.MaxPayloadBytes+4096)).Decode(&raw); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeErr(w, apperr.New(apperr.KindPayloadTooBig, err.Error()))
			return
		}
		h.writeErr(w, apperr.New(apperr.KindSchema, err.Error()))
		return
	}

	ev, aerr := eventschema.Canonicalize(raw)
	if aerr != nil {
		observability.IncIngestError(string(aerr.Kind))
		h.writeErr(w, aerr)
		return
	}

	if !h.gate.enter() {
		w.Header().Set("Retry-After", "1")
		h.writeErr(w, apperr.New(apperr.KindBackpressure, "store write queue depth exceeded"))
		return
	}
	defer h.gate.leave()

	ev.Geo = h.enricher.Enrich(ctx, ev.SourceAddress)

	score, degraded := h.ensemble.Score(ctx, ev)
	ev.Score = score
	ev.ScoringDegraded = degraded

	if h.hotness != nil {
		h.hotness.Inc(ev.SourceAddress)
		ev.SourceHotness = h.hotness.Score(ev.SourceAddress)
		observability.ObserveSourceHotnessSample(ev.SourceAddress, ev.SourceHotness)
	}

	wasRecent := h.recent.seenRecently(ev.ContentHash)

	res := store.PutResult{}
	if !wasRecent {
		var err error
		res, err = h.store.Put(ctx, ev)
		if err != nil {
			aerr := toAppErr(err)
			observability.IncIngestError(string(aerr.Kind))
			h.writeErr(w, aerr)
			return
		}
		h.recent.remember(ev.ContentHash)
	}

	duplicate := !res.Inserted || wasRecent
	inserted := res.Inserted && !wasRecent

	if inserted {
		if err := h.pub.Publish(ctx, ev); err != nil {
			h.logger.Warn("downstream publish failed", "err", err, "content_hash", ev.ContentHash)
		}
	}

	outcome := "inserted"
	if duplicate {
		outcome = "duplicate"
	}
	observability.ObserveIngest(outcome, time.Since(start).Seconds())

	h.writeJSON(w, http.StatusOK, ackResponse{
		Accepted:  true,
		Inserted:  inserted,
		Duplicate: duplicate,
		Score:     ev.Score,
	})
}

func toAppErr(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	return apperr.Wrap(apperr.KindStoreFatal, err)
}

func (h *Handler) writeErr(w http.ResponseWriter, err *apperr.Error) {
	h.writeJSON(w, err.Kind.Status(), map[string]string{
		"error":  string(err.Kind),
		"detail": err.Detail,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
