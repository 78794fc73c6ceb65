package store

import (
	"testing"
	"time"
)

func TestCurrentHourUTC_TruncatesToHourBoundary(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 37, 52, 123, time.UTC)
	got := CurrentHourUTC(now)
	want := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestCurrentHourUTC_ConvertsNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 3, 5, 9, 37, 0, 0, loc) // 14:37 UTC
	got := CurrentHourUTC(now)
	want := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestLast24Buckets_EndsAtAnchorInAscendingOrder(t *testing.T) {
	anchor := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	buckets := Last24Buckets(anchor)

	if len(buckets) != 24 {
		t.Fatalf("len=%d want 24", len(buckets))
	}
	if !buckets[23].Equal(anchor) {
		t.Fatalf("last bucket=%v want anchor %v", buckets[23], anchor)
	}
	if !buckets[0].Equal(anchor.Add(-23 * time.Hour)) {
		t.Fatalf("first bucket=%v want anchor-23h", buckets[0])
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i].Sub(buckets[i-1]) != time.Hour {
			t.Fatalf("buckets not consecutive hours at index %d: %v -> %v", i, buckets[i-1], buckets[i])
		}
	}
}

func TestFillSeries_FillsMissingBucketsWithZero(t *testing.T) {
	anchor := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	present := anchor.Add(-1 * time.Hour)
	rows := map[time.Time]Bucket{
		present: {Time: present, Count: 7, Avg: 0.42},
	}

	series := FillSeries(anchor, rows)
	if len(series) != 24 {
		t.Fatalf("len=%d want 24", len(series))
	}

	var foundPresent bool
	for _, b := range series {
		if b.Time.Equal(present) {
			foundPresent = true
			if b.Count != 7 || b.Avg != 0.42 {
				t.Fatalf("present bucket=%+v want count=7 avg=0.42", b)
			}
			continue
		}
		if b.Count != 0 || b.Avg != 0 {
			t.Fatalf("empty bucket=%+v want zero value", b)
		}
	}
	if !foundPresent {
		t.Fatalf("expected the present bucket to survive the merge")
	}
}
