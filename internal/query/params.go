// Package query implements the read-side query endpoints (C7) backing the
// dashboard: live events, stats, analytics, map points, ML insights, alerts,
// and per-source investigation.
package query

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/htpot/collector/internal/store"
)

const (
	defaultLimit = 100
	maxLimit     = 10000
	defaultTopN  = 10
	maxTopN      = 100
)

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("limit must be positive")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func parseTopN(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("top"))
	if raw == "" {
		return defaultTopN, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("top must be an integer: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("top must be positive")
	}
	if n > maxTopN {
		n = maxTopN
	}
	return n, nil
}

func parseMinScore(r *http.Request) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("min_score"))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("min_score must be a float: %w", err)
	}
	if f < 0 || f > 1 {
		return nil, fmt.Errorf("min_score must be in [0,1]")
	}
	return &f, nil
}

func parseThreshold(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("threshold"))
	if raw == "" {
		return 0.5, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("threshold must be a float: %w", err)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("threshold must be in [0,1]")
	}
	return f, nil
}

func sourceFilter(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("source"))
}

// parseBBox parses the optional "bbox=x1,y1,x2,y2" viewport filter on /map,
// following the teacher's bbox-validation idiom (x=longitude, y=latitude,
// EPSG:4326 degree ranges, x2>x1 and y2>y1).
func parseBBox(r *http.Request) (*store.BoundingBox, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("bbox"))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be 4 comma-separated values: x1,y1,x2,y2")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %d: %w", i+1, err)
		}
		vals[i] = f
	}
	x1, y1, x2, y2 := vals[0], vals[1], vals[2], vals[3]
	if x1 < -180 || x1 > 180 || x2 < -180 || x2 > 180 {
		return nil, fmt.Errorf("bbox longitude must be in [-180,180]")
	}
	if y1 < -90 || y1 > 90 || y2 < -90 || y2 > 90 {
		return nil, fmt.Errorf("bbox latitude must be in [-90,90]")
	}
	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
	}
	return &store.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}, nil
}
