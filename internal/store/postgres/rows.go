package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/htpot/collector/internal/eventschema"
)

type eventRow struct {
	ID              int64           `db:"id"`
	ObservedAt      time.Time       `db:"observed_at"`
	IngestedAt      time.Time       `db:"ingested_at"`
	SourceAddress   string          `db:"source_address"`
	GeoCountry      sql.NullString  `db:"geo_country"`
	GeoRegion       sql.NullString  `db:"geo_region"`
	GeoCity         sql.NullString  `db:"geo_city"`
	GeoLatitude     sql.NullFloat64 `db:"geo_latitude"`
	GeoLongitude    sql.NullFloat64 `db:"geo_longitude"`
	GeoISP          sql.NullString  `db:"geo_isp"`
	GeoOrganization sql.NullString  `db:"geo_organization"`
	GeoTimezone     sql.NullString  `db:"geo_timezone"`
	GeoIsPrivate    bool            `db:"geo_is_private"`
	Protocol        sql.NullString  `db:"protocol"`
	TargetService   string          `db:"target_service"`
	Action          string          `db:"action"`
	TargetPath      sql.NullString  `db:"target_path"`
	SessionID       string          `db:"session_id"`
	UserAgent       sql.NullString  `db:"user_agent"`
	Headers         []byte          `db:"headers"`
	Payload         []byte          `db:"payload"`
	ScoreValue      float64         `db:"score_value"`
	ScoreBand       string          `db:"score_band"`
	ScoreIsAnomaly  bool            `db:"score_is_anomaly"`
	PredictedClass  string          `db:"predicted_class"`
	TrafficClass    sql.NullString  `db:"traffic_class"`
	ScoringDegraded bool            `db:"scoring_degraded"`
	ContentHash     string          `db:"content_hash"`
	SourceHotness   float64         `db:"source_hotness"`
}

func (r eventRow) toEvent() eventschema.Event {
	e := eventschema.Event{
		ID:            r.ID,
		ObservedAt:    r.ObservedAt.UTC(),
		IngestedAt:    r.IngestedAt.UTC(),
		SourceAddress: r.SourceAddress,
		Geo: eventschema.GeoFields{
			Country:      r.GeoCountry.String,
			Region:       r.GeoRegion.String,
			City:         r.GeoCity.String,
			ISP:          r.GeoISP.String,
			Organization: r.GeoOrganization.String,
			Timezone:     r.GeoTimezone.String,
			IsPrivate:    r.GeoIsPrivate,
		},
		Protocol:      r.Protocol.String,
		TargetService: r.TargetService,
		Action:        r.Action,
		TargetPath:    r.TargetPath.String,
		SessionID:     r.SessionID,
		UserAgent:     r.UserAgent.String,
		Payload:       r.Payload,
		Score: eventschema.Score{
			Value:          r.ScoreValue,
			Band:           eventschema.Band(r.ScoreBand),
			IsAnomaly:      r.ScoreIsAnomaly,
			PredictedClass: r.PredictedClass,
			TrafficClass:   r.TrafficClass.String,
		},
		ScoringDegraded: r.ScoringDegraded,
		ContentHash:     r.ContentHash,
		SourceHotness:   r.SourceHotness,
	}
	if r.GeoLatitude.Valid {
		v := r.GeoLatitude.Float64
		e.Geo.Latitude = &v
	}
	if r.GeoLongitude.Valid {
		v := r.GeoLongitude.Float64
		e.Geo.Longitude = &v
	}
	if len(r.Headers) > 0 {
		_ = json.Unmarshal(r.Headers, &e.Headers)
	}
	return e
}
