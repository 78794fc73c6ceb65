package query

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/htpot/collector/internal/apperr"
	"github.com/htpot/collector/internal/core/observability"
	"github.com/htpot/collector/internal/store"
)

type Handlers struct {
	logger *slog.Logger
	store  store.Store
}

func NewHandlers(logger *slog.Logger, st store.Store) *Handlers {
	return &Handlers{logger: logger, store: st}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// wrap times the handler and records it under a fixed route label, the way
// router.HandleQuery does for the single-route WFS-style query endpoint.
func wrap(route string, fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	if ae, ok := apperr.As(err); ok {
		writeJSON(w, ae.Kind.Status(), map[string]string{"error": string(ae.Kind), "detail": ae.Detail})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": string(apperr.KindStoreFatal), "detail": err.Error()})
}

func writeParamErr(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": string(apperr.KindQueryParam), "detail": err.Error()})
}

func (h *Handlers) LiveEvents() http.HandlerFunc {
	return wrap("/events", func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		minScore, err := parseMinScore(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		events, err := h.store.LiveEvents(r.Context(), limit, sourceFilter(r), minScore)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	})
}

func (h *Handlers) Stats() http.HandlerFunc {
	return wrap("/stats", func(w http.ResponseWriter, r *http.Request) {
		topN, err := parseTopN(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		stats, err := h.store.Stats(r.Context(), topN)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})
}

func (h *Handlers) Analytics() http.HandlerFunc {
	return wrap("/analytics", func(w http.ResponseWriter, r *http.Request) {
		topN, err := parseTopN(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		a, err := h.store.Analytics(r.Context(), topN)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	})
}

func (h *Handlers) MapPoints() http.HandlerFunc {
	return wrap("/map", func(w http.ResponseWriter, r *http.Request) {
		bbox, err := parseBBox(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		points, err := h.store.MapPoints(r.Context(), bbox)
		if err != nil {
			writeErr(w, err)
			return
		}
		if wantsGeoJSON(r) {
			writeJSON(w, http.StatusOK, toFeatureCollection(points))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"points": points})
	})
}

func (h *Handlers) MLInsights() http.HandlerFunc {
	return wrap("/ml-insights", func(w http.ResponseWriter, r *http.Request) {
		topN, err := parseTopN(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		insights, err := h.store.MLInsights(r.Context(), topN)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, insights)
	})
}

func (h *Handlers) Alerts() http.HandlerFunc {
	return wrap("/alerts", func(w http.ResponseWriter, r *http.Request) {
		threshold, err := parseThreshold(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		limit, err := parseLimit(r)
		if err != nil {
			writeParamErr(w, err)
			return
		}
		events, err := h.store.Alerts(r.Context(), threshold, limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": events})
	})
}

func (h *Handlers) Investigate() http.HandlerFunc {
	return wrap("/investigate", func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		if source == "" {
			writeParamErr(w, errMissingSource)
			return
		}
		res, err := h.store.Investigate(r.Context(), source)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}
