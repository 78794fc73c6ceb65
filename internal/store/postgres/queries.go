package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/htpot/collector/internal/apperr"
	"github.com/htpot/collector/internal/core/observability"
	"github.com/htpot/collector/internal/eventschema"
	"github.com/htpot/collector/internal/store"
)

const pgUniqueViolation = "23505"

// Put inserts e, relying on the unique content_hash index for dedup via
// ON CONFLICT DO NOTHING. On conflict the original row is preserved and
// Inserted=false.
func (s *Store) Put(ctx context.Context, e eventschema.Event) (store.PutResult, error) {
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return store.PutResult{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}

	const q = `
INSERT INTO events (
	observed_at, ingested_at, source_address,
	geo_country, geo_region, geo_city, geo_latitude, geo_longitude, geo_isp, geo_organization, geo_timezone, geo_is_private,
	protocol, target_service, action, target_path, session_id, user_agent, headers, payload,
	score_value, score_band, score_is_anomaly, predicted_class, traffic_class, scoring_degraded, content_hash, source_hotness
) VALUES (
	$1, $2, $3,
	$4, $5, $6, $7, $8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24, $25, $26, $27, $28
)
ON CONFLICT (content_hash) DO NOTHING
RETURNING id`

	start := time.Now()
	var id int64
	err = s.db.QueryRowContext(ctx, q,
		e.ObservedAt, e.IngestedAt, e.SourceAddress,
		nullable(e.Geo.Country), nullable(e.Geo.Region), nullable(e.Geo.City), e.Geo.Latitude, e.Geo.Longitude,
		nullable(e.Geo.ISP), nullable(e.Geo.Organization), nullable(e.Geo.Timezone), e.Geo.IsPrivate,
		nullable(e.Protocol), e.TargetService, e.Action, nullable(e.TargetPath), e.SessionID, nullable(e.UserAgent),
		headers, e.Payload,
		e.Score.Value, string(e.Score.Band), e.Score.IsAnomaly, e.Score.PredictedClass, nullable(e.Score.TrafficClass),
		e.ScoringDegraded, e.ContentHash, e.SourceHotness,
	).Scan(&id)
	observed := err
	if isNoRows(err) {
		observed = nil // content_hash conflict: a duplicate, not a write error
	}
	observability.ObserveStoreWrite(time.Since(start).Seconds(), observed)

	switch {
	case err == nil:
		return store.PutResult{Inserted: true}, nil
	case isNoRows(err):
		return store.PutResult{Inserted: false}, nil
	default:
		return store.PutResult{}, classifyWriteErr(err)
	}
}

func classifyWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return nil
		}
		observability.IncStoreError("transient")
		return apperr.Wrap(apperr.KindStoreTransOK, err)
	}
	observability.IncStoreError("fatal")
	return apperr.Wrap(apperr.KindStoreFatal, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isNoRows(err error) bool {
	return err != nil && err.Error() == "sql: no rows in result set"
}

func (s *Store) LiveEvents(ctx context.Context, limit int, sourceFilter string, minScore *float64) ([]eventschema.Event, error) {
	if limit <= 0 || limit > 10_000 {
		limit = 100
	}
	q := `SELECT * FROM events WHERE ($1 = '' OR source_address = $1) AND ($2::double precision IS NULL OR score_value >= $2)
	      ORDER BY ingested_at DESC LIMIT $3`
	var min any
	if minScore != nil {
		min = *minScore
	}
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, sourceFilter, min, limit); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	return toEvents(rows), nil
}

func toEvents(rows []eventRow) []eventschema.Event {
	out := make([]eventschema.Event, len(rows))
	for i, r := range rows {
		out[i] = r.toEvent()
	}
	return out
}

func (s *Store) Stats(ctx context.Context, topN int) (store.Stats, error) {
	var st store.Stats

	const totals = `SELECT
		COUNT(*) AS total,
		COUNT(DISTINCT source_address) AS distinct_sources,
		COUNT(*) FILTER (WHERE ingested_at >= now() - interval '24 hours') AS last_24h,
		COALESCE(AVG(score_value), 0) AS avg_score,
		COUNT(*) FILTER (WHERE score_band = 'HIGH') AS high_risk_count,
		COUNT(*) FILTER (WHERE score_is_anomaly) AS anomaly_count
	FROM events`
	row := s.db.QueryRowxContext(ctx, totals)
	if err := row.Scan(&st.Total, &st.DistinctSources, &st.Last24h, &st.AvgScore, &st.HighRiskCount, &st.AnomalyCount); err != nil {
		return store.Stats{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}

	var err error
	if st.TopServices, err = s.topN(ctx, "target_service", topN); err != nil {
		return store.Stats{}, err
	}
	if st.TopActions, err = s.topN(ctx, "action", topN); err != nil {
		return store.Stats{}, err
	}
	if st.TopCountries, err = s.topN(ctx, "geo_country", topN); err != nil {
		return store.Stats{}, err
	}
	if st.BandHistogram, err = s.bandHistogram(ctx); err != nil {
		return store.Stats{}, err
	}
	if st.HourlySeries, err = s.hourlySeries(ctx, true); err != nil {
		return store.Stats{}, err
	}
	return st, nil
}

func (s *Store) Analytics(ctx context.Context, topN int) (store.Analytics, error) {
	var a store.Analytics

	const totals = `SELECT
		COUNT(*) FILTER (WHERE ingested_at >= now() - interval '24 hours') AS total_24h,
		COUNT(*) FILTER (WHERE ingested_at >= now() - interval '24 hours' AND score_band = 'HIGH') AS high_risk_total,
		COUNT(DISTINCT source_address) AS distinct_sources,
		COALESCE(AVG(score_value), 0) AS avg_score
	FROM events`
	row := s.db.QueryRowxContext(ctx, totals)
	if err := row.Scan(&a.Total24h, &a.HighRiskTotal, &a.DistinctSources, &a.AvgScore); err != nil {
		return store.Analytics{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}

	var err error
	if a.TopCountries, err = s.topN(ctx, "geo_country", topN); err != nil {
		return store.Analytics{}, err
	}
	if a.TopSources, err = s.topN(ctx, "source_address", topN); err != nil {
		return store.Analytics{}, err
	}
	if a.TopProtocols, err = s.topN(ctx, "protocol", topN); err != nil {
		return store.Analytics{}, err
	}
	if a.HourlySeries, err = s.hourlySeries(ctx, false); err != nil {
		return store.Analytics{}, err
	}
	return a, nil
}

func (s *Store) MapPoints(ctx context.Context, bbox *store.BoundingBox) ([]store.MapPoint, error) {
	q := `SELECT source_address, COUNT(*) AS count, COALESCE(AVG(score_value),0) AS avg_score,
		MAX(geo_country) AS country, MAX(geo_city) AS city, MAX(geo_latitude) AS latitude, MAX(geo_longitude) AS longitude
	FROM events
	WHERE geo_latitude IS NOT NULL AND geo_longitude IS NOT NULL`
	args := []any{}
	if bbox != nil {
		q += ` AND geo_longitude BETWEEN $1 AND $2 AND geo_latitude BETWEEN $3 AND $4`
		args = append(args, bbox.X1, bbox.X2, bbox.Y1, bbox.Y2)
	}
	q += ` GROUP BY source_address`

	var out []store.MapPoint
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	return out, nil
}

func (s *Store) MLInsights(ctx context.Context, topN int) (store.MLInsights, error) {
	var m store.MLInsights

	const totals = `SELECT COALESCE(AVG(score_value) FILTER (WHERE score_is_anomaly), 0) AS avg_anomaly_score,
		COUNT(*) FILTER (WHERE score_is_anomaly) AS anomaly_count,
		COUNT(*) FILTER (WHERE traffic_class IN ('TOR','VPN')) AS suspicious_traffic
	FROM events`
	row := s.db.QueryRowxContext(ctx, totals)
	if err := row.Scan(&m.AvgAnomalyScore, &m.AnomalyCount, &m.SuspiciousTraffic); err != nil {
		return store.MLInsights{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}

	var err error
	if m.HourlySeries, err = s.hourlySeries(ctx, true); err != nil {
		return store.MLInsights{}, err
	}
	if m.BandHistogram, err = s.bandHistogram(ctx); err != nil {
		return store.MLInsights{}, err
	}

	const topHighScore = `SELECT source_address AS key, COUNT(*) AS count FROM events
		GROUP BY source_address HAVING AVG(score_value) >= 0.8 ORDER BY count DESC, key ASC LIMIT $1`
	if err := s.db.SelectContext(ctx, &m.TopSources, topHighScore, clampN(topN)); err != nil {
		return store.MLInsights{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}

	const trafficQ = `SELECT traffic_class AS key, COUNT(*) AS count FROM events
		WHERE traffic_class IS NOT NULL GROUP BY traffic_class`
	var rows []store.TopEntry
	if err := s.db.SelectContext(ctx, &rows, trafficQ); err != nil {
		return store.MLInsights{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	m.TrafficClassCounts = make(map[string]int64, len(rows))
	for _, r := range rows {
		m.TrafficClassCounts[r.Key] = r.Count
	}
	return m, nil
}

func (s *Store) Alerts(ctx context.Context, threshold float64, limit int) ([]eventschema.Event, error) {
	if limit <= 0 || limit > 10_000 {
		limit = 100
	}
	const q = `SELECT * FROM events WHERE score_value >= $1 ORDER BY score_value DESC LIMIT $2`
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, threshold, limit); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	return toEvents(rows), nil
}

func (s *Store) Investigate(ctx context.Context, sourceAddress string) (store.InvestigateResult, error) {
	const q = `SELECT * FROM events WHERE source_address = $1 ORDER BY ingested_at ASC`
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, sourceAddress); err != nil {
		return store.InvestigateResult{}, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	if len(rows) == 0 {
		return store.InvestigateResult{}, apperr.New(apperr.KindNotFound, fmt.Sprintf("no events for source %q", sourceAddress))
	}

	events := toEvents(rows)
	res := store.InvestigateResult{
		SourceAddress: sourceAddress,
		Events:        events,
		Count:         int64(len(events)),
		FirstSeen:     events[0].IngestedAt,
		LastSeen:      events[len(events)-1].IngestedAt,
	}

	actionSet := map[string]struct{}{}
	serviceSet := map[string]struct{}{}
	var sum float64
	for _, e := range events {
		sum += e.Score.Value
		actionSet[e.Action] = struct{}{}
		serviceSet[e.TargetService] = struct{}{}
		if e.IngestedAt.Before(res.FirstSeen) {
			res.FirstSeen = e.IngestedAt
		}
		if e.IngestedAt.After(res.LastSeen) {
			res.LastSeen = e.IngestedAt
		}
	}
	res.AvgScore = sum / float64(len(events))
	for a := range actionSet {
		res.DistinctActions = append(res.DistinctActions, a)
	}
	for svc := range serviceSet {
		res.DistinctServices = append(res.DistinctServices, svc)
	}

	var err error
	const seriesQ = `SELECT date_trunc('hour', ingested_at) AS bucket, COUNT(*) AS count, COALESCE(AVG(score_value),0) AS avg
		FROM events WHERE source_address = $1 AND ingested_at >= now() - interval '24 hours'
		GROUP BY bucket`
	res.HourlySeries, err = s.seriesFrom(ctx, seriesQ, sourceAddress)
	if err != nil {
		return store.InvestigateResult{}, err
	}
	return res, nil
}

func (s *Store) topN(ctx context.Context, column string, n int) ([]store.TopEntry, error) {
	q := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM events WHERE %s IS NOT NULL
		GROUP BY %s ORDER BY count DESC, key ASC LIMIT $1`, column, column, column)
	var out []store.TopEntry
	if err := s.db.SelectContext(ctx, &out, q, clampN(n)); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	return out, nil
}

func (s *Store) bandHistogram(ctx context.Context) (store.BandHistogram, error) {
	const q = `SELECT score_band AS key, COUNT(*) AS count FROM events GROUP BY score_band`
	var rows []store.TopEntry
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	h := store.BandHistogram{}
	for _, r := range rows {
		h[eventschema.Band(r.Key)] = r.Count
	}
	return h, nil
}

func (s *Store) hourlySeries(ctx context.Context, withAvg bool) ([]store.Bucket, error) {
	const q = `SELECT date_trunc('hour', ingested_at) AS bucket, COUNT(*) AS count, COALESCE(AVG(score_value),0) AS avg
		FROM events WHERE ingested_at >= now() - interval '24 hours'
		GROUP BY bucket`
	return s.seriesFrom(ctx, q)
}

func (s *Store) seriesFrom(ctx context.Context, q string, args ...any) ([]store.Bucket, error) {
	type row struct {
		Bucket time.Time `db:"bucket"`
		Count  int64     `db:"count"`
		Avg    float64   `db:"avg"`
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFatal, err)
	}
	byBucket := make(map[time.Time]store.Bucket, len(rows))
	for _, r := range rows {
		byBucket[r.Bucket.UTC()] = store.Bucket{Time: r.Bucket.UTC(), Count: r.Count, Avg: r.Avg}
	}
	return store.FillSeries(store.CurrentHourUTC(time.Now()), byBucket), nil
}

func clampN(n int) int {
	if n <= 0 {
		return 10
	}
	if n > 100 {
		return 100
	}
	return n
}
