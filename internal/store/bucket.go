package store

import "time"

const BucketFormat = "2006-01-02T15:04:05Z"

// CurrentHourUTC truncates now to the current UTC hour boundary, the anchor
// for all 24h windows (never the time of the latest row).
func CurrentHourUTC(now time.Time) time.Time {
	n := now.UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), 0, 0, 0, time.UTC)
}

// Last24Buckets returns the 24 consecutive hour-bucket boundaries ending at
// anchor (inclusive), in ascending order.
func Last24Buckets(anchor time.Time) []time.Time {
	out := make([]time.Time, 24)
	for i := range out {
		out[i] = anchor.Add(-time.Duration(23-i) * time.Hour)
	}
	return out
}

// FillSeries merges sparse (bucket, count, avg) rows from a query into the
// full 24-bucket series, so empty buckets read as zero rather than missing.
func FillSeries(anchor time.Time, rows map[time.Time]Bucket) []Bucket {
	buckets := Last24Buckets(anchor)
	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		if v, ok := rows[b]; ok {
			out[i] = Bucket{Time: b, Count: v.Count, Avg: v.Avg}
		} else {
			out[i] = Bucket{Time: b, Count: 0, Avg: 0}
		}
	}
	return out
}
