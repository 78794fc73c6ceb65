package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/htpot/collector/internal/apperr"
	"github.com/htpot/collector/internal/eventschema"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })
	return &Store{db: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func sampleEvent() eventschema.Event {
	return eventschema.Event{
		ObservedAt:    time.Now().UTC(),
		IngestedAt:    time.Now().UTC(),
		SourceAddress: "203.0.113.5",
		TargetService: "ssh",
		Action:        "login_attempt",
		SessionID:     "sess-1",
		Score:         eventschema.Score{Value: 0.5, Band: eventschema.BandMedium, PredictedClass: "BENIGN"},
		ContentHash:   "abc123",
	}
}

func TestPut_InsertsNewRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	res, err := s.Put(context.Background(), sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Inserted {
		t.Fatalf("expected Inserted=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPut_OnConflictNoRowsIsDuplicateNotError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(sql.ErrNoRows)

	res, err := s.Put(context.Background(), sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Inserted {
		t.Fatalf("expected Inserted=false on conflict")
	}
}

func TestPut_UniqueViolationPgErrorIsAlsoTreatedAsDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	res, err := s.Put(context.Background(), sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Inserted {
		t.Fatalf("expected Inserted=false on unique violation")
	}
}

func TestPut_OtherPgErrorIsStoreTransient(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(&pgconn.PgError{Code: "40001"}) // serialization_failure

	_, err := s.Put(context.Background(), sampleEvent())
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindStoreTransOK {
		t.Fatalf("err=%v want KindStoreTransient", err)
	}
}

func TestPut_GenericErrorIsStoreFatal(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := s.Put(context.Background(), sampleEvent())
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindStoreFatal {
		t.Fatalf("err=%v want KindStoreFatal", err)
	}
}

func eventRowColumns() []string {
	return []string{
		"id", "observed_at", "ingested_at", "source_address",
		"geo_country", "geo_region", "geo_city", "geo_latitude", "geo_longitude", "geo_isp", "geo_organization", "geo_timezone", "geo_is_private",
		"protocol", "target_service", "action", "target_path", "session_id", "user_agent", "headers", "payload",
		"score_value", "score_band", "score_is_anomaly", "predicted_class", "traffic_class", "scoring_degraded", "content_hash",
		"source_hotness",
	}
}

func sampleEventRow(now time.Time) []driverValue {
	return []driverValue{
		int64(1), now, now, "203.0.113.5",
		"US", nil, nil, 1.23, 4.56, nil, nil, nil, false,
		"tcp", "ssh", "login_attempt", nil, "sess-1", nil, []byte("{}"), nil,
		0.5, "MEDIUM", false, "BENIGN", nil, false, "abc123",
		0.0,
	}
}

// driverValue is any, named only so sampleEventRow reads clearly as a row of
// heterogeneous driver-compatible values.
type driverValue = any

func TestLiveEvents_ScansRowsIntoEvents(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	row := sampleEventRow(now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events")).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).AddRow(row...))

	events, err := s.LiveEvents(context.Background(), 100, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len=%d want 1", len(events))
	}
	if events[0].SourceAddress != "203.0.113.5" || events[0].Geo.Country != "US" {
		t.Fatalf("event=%+v unexpected scan result", events[0])
	}
}

func TestLiveEvents_ScansSourceHotness(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	row := sampleEventRow(now)
	row[28] = 3.5 // source_hotness
	mock.ExpectQuery(regexp.QuoteMeta("FROM events")).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).AddRow(row...))

	events, err := s.LiveEvents(context.Background(), 100, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].SourceHotness != 3.5 {
		t.Fatalf("events=%+v want source_hotness=3.5", events)
	}
}

func TestLiveEvents_QueryErrorIsStoreFatal(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events")).
		WillReturnError(errors.New("query timeout"))

	_, err := s.LiveEvents(context.Background(), 100, "", nil)
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindStoreFatal {
		t.Fatalf("err=%v want KindStoreFatal", err)
	}
}

func TestInvestigate_NoRowsIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE source_address")).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()))

	_, err := s.Investigate(context.Background(), "203.0.113.5")
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindNotFound {
		t.Fatalf("err=%v want KindNotFound", err)
	}
}

func TestInvestigate_AggregatesAcrossEvents(t *testing.T) {
	s, mock := newMockStore(t)
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	rows := sqlmock.NewRows(eventRowColumns())
	r0 := sampleEventRow(t0)
	r0[21] = 0.2 // score_value
	rows.AddRow(r0...)
	r1 := sampleEventRow(t1)
	r1[21] = 0.8
	rows.AddRow(r1...)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE source_address")).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("date_trunc")).WillReturnRows(sqlmock.NewRows([]string{"bucket", "count", "avg"}))

	res, err := s.Investigate(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("count=%d want 2", res.Count)
	}
	if res.AvgScore != 0.5 {
		t.Fatalf("avg_score=%v want 0.5", res.AvgScore)
	}
	if !res.FirstSeen.Equal(t0) || !res.LastSeen.Equal(t1) {
		t.Fatalf("first=%v last=%v want %v/%v", res.FirstSeen, res.LastSeen, t0, t1)
	}
}
