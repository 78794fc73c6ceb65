package kafka

import (
	"testing"
	"time"

	"github.com/htpot/collector/internal/eventschema"
)

func TestConfigFromEnv_DefaultsTopicWhenEmpty(t *testing.T) {
	cfg := ConfigFromEnv(true, "broker1:9092,broker2:9092", "")
	if cfg.Topic != "htpot-events" {
		t.Fatalf("topic=%q want default", cfg.Topic)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "broker1:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
	if !cfg.Enabled {
		t.Fatalf("expected Enabled=true to pass through")
	}
}

func TestConfigFromEnv_KeepsExplicitTopic(t *testing.T) {
	cfg := ConfigFromEnv(false, "", "custom-topic")
	if cfg.Topic != "custom-topic" {
		t.Fatalf("topic=%q want custom-topic", cfg.Topic)
	}
}

func TestSplitCSV_TrimsAndDropsEmptyEntries(t *testing.T) {
	got := splitCSV(" broker1:9092 ,, broker2:9092,")
	want := []string{"broker1:9092", "broker2:9092"}
	if len(got) != len(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v want=%v", got, want)
		}
	}
}

func TestSplitCSV_EmptyStringYieldsNoBrokers(t *testing.T) {
	if got := splitCSV(""); len(got) != 0 {
		t.Fatalf("got=%v want empty", got)
	}
}

func TestToWireEvent_FlattensScoreAndGeoFields(t *testing.T) {
	e := eventschema.Event{
		ID:            7,
		ObservedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SourceAddress: "203.0.113.5",
		Geo:           eventschema.GeoFields{Country: "US"},
		Protocol:      "tcp",
		TargetService: "ssh",
		Action:        "login_attempt",
		Score: eventschema.Score{
			Value:          0.91,
			Band:           eventschema.BandHigh,
			IsAnomaly:      true,
			PredictedClass: string(eventschema.ClassKnownMalicious),
			TrafficClass:   "scanner",
		},
		ContentHash: "abc123",
	}

	w := toWireEvent(e)
	if w.ID != 7 || w.SourceAddress != "203.0.113.5" || w.Country != "US" {
		t.Fatalf("wire event=%+v unexpected base fields", w)
	}
	if w.ScoreValue != 0.91 || w.ScoreBand != "HIGH" || !w.IsAnomaly {
		t.Fatalf("wire event=%+v unexpected score fields", w)
	}
	if w.PredictedClass != "KNOWN_MALICIOUS" || w.TrafficClass != "scanner" {
		t.Fatalf("wire event=%+v unexpected classification fields", w)
	}
	if w.ContentHash != "abc123" {
		t.Fatalf("wire event=%+v want content hash abc123", w)
	}
}
