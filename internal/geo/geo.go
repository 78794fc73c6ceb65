// Package geo resolves a source address into geolocation fields with a
// bounded, TTL-cached, concurrency-limited upstream lookup that never blocks
// or fails the ingest path.
package geo

import (
	"context"

	"github.com/htpot/collector/internal/eventschema"
)

// Enricher transforms a source address into geo fields. It never returns an
// error; unresolved lookups come back with Status=unresolved and zero value
// fields.
type Enricher interface {
	Enrich(ctx context.Context, sourceAddress string) eventschema.GeoFields
	CacheSize() int
}
