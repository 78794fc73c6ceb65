// Package store defines the durable event store contract (C5): an
// append-only events relation with dedup-on-write and the read-side
// aggregation queries backing the dashboard.
package store

import (
	"context"
	"time"

	"github.com/htpot/collector/internal/eventschema"
)

type PutResult struct {
	Inserted bool
}

type Bucket struct {
	Time  time.Time `json:"bucket"`
	Count int64     `json:"count"`
	Avg   float64   `json:"avg_score,omitempty"`
}

type TopEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type BandHistogram map[eventschema.Band]int64

type Stats struct {
	Total             int64           `json:"total"`
	DistinctSources   int64           `json:"distinct_sources"`
	Last24h           int64           `json:"last_24h"`
	AvgScore          float64         `json:"avg_score"`
	HighRiskCount     int64           `json:"high_risk_count"`
	AnomalyCount      int64           `json:"anomaly_count"`
	TopServices       []TopEntry      `json:"top_services"`
	TopActions        []TopEntry      `json:"top_actions"`
	TopCountries      []TopEntry      `json:"top_countries"`
	BandHistogram     BandHistogram   `json:"band_histogram"`
	HourlySeries      []Bucket        `json:"hourly_series"`
}

type Analytics struct {
	Total24h        int64      `json:"total_24h"`
	HighRiskTotal   int64      `json:"high_risk_total"`
	DistinctSources int64      `json:"distinct_sources"`
	AvgScore        float64    `json:"avg_score"`
	TopCountries    []TopEntry `json:"top_countries"`
	TopSources      []TopEntry `json:"top_sources"`
	TopProtocols    []TopEntry `json:"top_protocols"`
	HourlySeries    []Bucket   `json:"hourly_series"`
}

// BoundingBox restricts MapPoints to a lon/lat viewport, in WGS84 (EPSG:4326)
// degrees, following the convention min-corner (X1,Y1) to max-corner (X2,Y2).
type BoundingBox struct {
	X1 float64 // min longitude
	Y1 float64 // min latitude
	X2 float64 // max longitude
	Y2 float64 // max latitude
}

type MapPoint struct {
	SourceAddress string  `json:"source_address"`
	Count         int64   `json:"count"`
	AvgScore      float64 `json:"avg_score"`
	Country       string  `json:"country,omitempty"`
	City          string  `json:"city,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

type MLInsights struct {
	AvgAnomalyScore     float64       `json:"avg_anomaly_score"`
	AnomalyCount        int64         `json:"anomaly_count"`
	HourlySeries        []Bucket      `json:"hourly_series"`
	TopSources          []TopEntry    `json:"top_sources"` // avg_score >= 0.8
	BandHistogram       BandHistogram `json:"band_histogram"`
	TrafficClassCounts  map[string]int64 `json:"traffic_class_histogram"`
	SuspiciousTraffic   int64         `json:"suspicious_traffic_count"`
}

type InvestigateResult struct {
	SourceAddress   string              `json:"source_address"`
	Events          []eventschema.Event `json:"events"`
	AvgScore        float64             `json:"avg_score"`
	Count           int64               `json:"count"`
	FirstSeen       time.Time           `json:"first_seen"`
	LastSeen        time.Time           `json:"last_seen"`
	DistinctActions []string            `json:"distinct_actions"`
	DistinctServices []string           `json:"distinct_services"`
	HourlySeries    []Bucket            `json:"hourly_series"`
}

// Store is the durable event store contract. Implementations must enforce
// uniqueness on content_hash and bucket all temporal series by UTC hour.
type Store interface {
	Put(ctx context.Context, e eventschema.Event) (PutResult, error)

	LiveEvents(ctx context.Context, limit int, sourceFilter string, minScore *float64) ([]eventschema.Event, error)
	Stats(ctx context.Context, topN int) (Stats, error)
	Analytics(ctx context.Context, topN int) (Analytics, error)
	MapPoints(ctx context.Context, bbox *BoundingBox) ([]MapPoint, error)
	MLInsights(ctx context.Context, topN int) (MLInsights, error)
	Alerts(ctx context.Context, threshold float64, limit int) ([]eventschema.Event, error)
	Investigate(ctx context.Context, sourceAddress string) (InvestigateResult, error)

	Ping(ctx context.Context) error
	Close() error
}
