package features

import (
	"testing"
	"time"

	"github.com/htpot/collector/internal/eventschema"
)

func TestFeaturize_EncodesCategoricalKnownAndUnknownValues(t *testing.T) {
	spec := Spec{
		Columns: []string{"action"},
		Encoders: map[string]map[string]float64{
			"action": {"login_attempt": 1, "scan_attempt": 2},
		},
		UnknownCode: -1,
	}

	known := Featurize(eventschema.Event{Action: "login_attempt"}, spec, false)
	if len(known) != 1 || known[0] != 1 {
		t.Fatalf("got %v want [1]", known)
	}

	unknown := Featurize(eventschema.Event{Action: "never_seen"}, spec, false)
	if len(unknown) != 1 || unknown[0] != -1 {
		t.Fatalf("got %v want [-1]", unknown)
	}
}

func TestFeaturize_StandardizesNumericColumnsWithScaler(t *testing.T) {
	spec := Spec{
		Columns: []string{"payload_size"},
		Scalers: map[string][2]float64{"payload_size": {10, 2}}, // mean=10 stddev=2
	}
	e := eventschema.Event{Payload: make([]byte, 14)}
	got := Featurize(e, spec, false)
	if len(got) != 1 || got[0] != 2 { // (14-10)/2
		t.Fatalf("got %v want [2]", got)
	}
}

func TestFeaturize_ZeroStddevScalerZeroesOut(t *testing.T) {
	spec := Spec{
		Columns: []string{"payload_size"},
		Scalers: map[string][2]float64{"payload_size": {10, 0}},
	}
	got := Featurize(eventschema.Event{Payload: make([]byte, 99)}, spec, false)
	if got[0] != 0 {
		t.Fatalf("got %v want [0]", got)
	}
}

func TestFeaturize_IndicatorColumnReflectsMatchFlag(t *testing.T) {
	spec := Spec{Columns: []string{"indicator_match"}}

	matched := Featurize(eventschema.Event{}, spec, true)
	if matched[0] != 1 {
		t.Fatalf("got %v want [1] when indicatorMatched", matched)
	}
	unmatched := Featurize(eventschema.Event{}, spec, false)
	if unmatched[0] != 0 {
		t.Fatalf("got %v want [0] when not indicatorMatched", unmatched)
	}
}

func TestFeaturize_BooleanAndLengthDerivedColumns(t *testing.T) {
	spec := Spec{Columns: []string{"has_target_path", "target_path_length", "has_session", "header_count"}}
	e := eventschema.Event{
		TargetPath: "/admin",
		SessionID:  "sess-1",
		Headers:    map[string]string{"a": "1", "b": "2"},
	}
	got := Featurize(e, spec, false)
	want := []float64{1, 6, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %v want %v", i, got[i], want[i])
		}
	}
}

func TestFeaturize_ObservedHourUTC(t *testing.T) {
	spec := Spec{Columns: []string{"observed_hour_utc"}}
	e := eventschema.Event{ObservedAt: time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)}
	got := Featurize(e, spec, false)
	if got[0] != 23 {
		t.Fatalf("got %v want [23]", got)
	}
}

func TestFeaturize_UserAgentBucketing(t *testing.T) {
	spec := Spec{
		Columns: []string{"user_agent_bucket"},
		Encoders: map[string]map[string]float64{
			"user_agent_bucket": {"empty": 0, "scripted": 1, "browser": 2, "other": 3},
		},
		UnknownCode: -1,
	}
	cases := []struct {
		ua   string
		want float64
	}{
		{"", 0},
		{"curl/8.0", 1},
		{"Mozilla/5.0 (Windows)", 2},
		{"SomeWeirdClient/1.0", 3},
	}
	for _, c := range cases {
		got := Featurize(eventschema.Event{UserAgent: c.ua}, spec, false)
		if got[0] != c.want {
			t.Errorf("ua=%q got %v want [%v]", c.ua, got, c.want)
		}
	}
}

func TestFeaturize_UnknownColumnNameDefaultsToZero(t *testing.T) {
	spec := Spec{Columns: []string{"nonexistent_column"}}
	got := Featurize(eventschema.Event{}, spec, true)
	if got[0] != 0 {
		t.Fatalf("got %v want [0]", got)
	}
}

func TestFeaturize_EmptySpecProducesEmptyVector(t *testing.T) {
	got := Featurize(eventschema.Event{}, Spec{}, false)
	if len(got) != 0 {
		t.Fatalf("got %v want empty vector", got)
	}
}
