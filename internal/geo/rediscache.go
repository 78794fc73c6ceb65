package geo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/htpot/collector/internal/cache/redisstore"
	"github.com/htpot/collector/internal/eventschema"
)

// sharedCache is the L2 cache backed by Redis, shared across collector
// instances. It is best-effort: callers fall back to an upstream lookup on
// any error.
type sharedCache struct {
	cli         *redisstore.Client
	positiveTTL time.Duration
	negativeTTL time.Duration
}

func newSharedCache(cli *redisstore.Client, positiveTTL, negativeTTL time.Duration) *sharedCache {
	return &sharedCache{cli: cli, positiveTTL: positiveTTL, negativeTTL: negativeTTL}
}

func geoCacheKey(addr string) string { return "geo:" + addr }

func (c *sharedCache) get(ctx context.Context, addr string) (eventschema.GeoFields, bool) {
	if c == nil || c.cli == nil {
		return eventschema.GeoFields{}, false
	}
	got, err := c.cli.MGet(ctx, []string{geoCacheKey(addr)})
	if err != nil || len(got) == 0 {
		return eventschema.GeoFields{}, false
	}
	raw, ok := got[geoCacheKey(addr)]
	if !ok {
		return eventschema.GeoFields{}, false
	}
	var gf eventschema.GeoFields
	if err := json.Unmarshal(raw, &gf); err != nil {
		return eventschema.GeoFields{}, false
	}
	return gf, true
}

func (c *sharedCache) put(ctx context.Context, addr string, gf eventschema.GeoFields) {
	if c == nil || c.cli == nil {
		return
	}
	raw, err := json.Marshal(gf)
	if err != nil {
		return
	}
	ttl := c.negativeTTL
	if gf.Status == eventschema.GeoStatusResolved {
		ttl = c.positiveTTL
	}
	_ = c.cli.Set(ctx, geoCacheKey(addr), raw, ttl)
}
