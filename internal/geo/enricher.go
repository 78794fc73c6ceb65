package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/htpot/collector/internal/cache/redisstore"
	"github.com/htpot/collector/internal/core/observability"
	"github.com/htpot/collector/internal/eventschema"
)

type Config struct {
	UpstreamURL string
	APIKey      string
	Timeout     time.Duration
	Concurrency int64

	CacheSize        int
	CachePositiveTTL time.Duration
	CacheNegativeTTL time.Duration

	// SemaphoreWait bounds how long a caller waits for a free upstream slot
	// before proceeding with an unresolved result.
	SemaphoreWait time.Duration
}

// HTTPEnricher implements Enricher against a configurable upstream
// IP-geolocation service, with a private-range short-circuit and a two-tier
// cache in front of the upstream call.
type HTTPEnricher struct {
	logger *slog.Logger
	cfg    Config
	client *http.Client
	sem    *semaphore.Weighted

	l1 *localCache
	l2 *sharedCache
}

// NewHTTPEnricher builds an enricher with its L1 in-process cache sized from
// cfg and its L2 cache backed by redisCli. redisCli may be nil, in which
// case every lookup falls through to L1 and the upstream call.
func NewHTTPEnricher(logger *slog.Logger, cfg Config, redisCli *redisstore.Client) *HTTPEnricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.SemaphoreWait <= 0 {
		cfg.SemaphoreWait = 500 * time.Millisecond
	}
	return &HTTPEnricher{
		logger: logger,
		cfg:    cfg,
		client: newOutboundClient(cfg.Timeout),
		sem:    semaphore.NewWeighted(cfg.Concurrency),
		l1:     newLocalCache(cfg.CacheSize, cfg.CachePositiveTTL, cfg.CacheNegativeTTL),
		l2:     newSharedCache(redisCli, cfg.CachePositiveTTL, cfg.CacheNegativeTTL),
	}
}

func (e *HTTPEnricher) CacheSize() int { return e.l1.len() }

// Enrich never returns an error. Unavailability of any kind — private
// address aside — degrades to an unresolved GeoFields so ingest can proceed.
func (e *HTTPEnricher) Enrich(ctx context.Context, sourceAddress string) eventschema.GeoFields {
	if isPrivate(sourceAddress) {
		return eventschema.GeoFields{IsPrivate: true, Status: eventschema.GeoStatusPrivate}
	}

	if gf, ok := e.l1.get(sourceAddress); ok {
		return gf
	}
	if gf, ok := e.l2.get(ctx, sourceAddress); ok {
		e.l1.put(sourceAddress, gf)
		return gf
	}

	gf := e.lookupBounded(ctx, sourceAddress)
	e.l1.put(sourceAddress, gf)
	e.l2.put(ctx, sourceAddress, gf)
	return gf
}

func (e *HTTPEnricher) lookupBounded(ctx context.Context, sourceAddress string) eventschema.GeoFields {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.SemaphoreWait)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		return eventschema.GeoFields{Status: eventschema.GeoStatusUnresolved}
	}
	defer e.sem.Release(1)

	lookupCtx, cancel2 := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel2()

	start := time.Now()
	gf, err := e.lookup(lookupCtx, sourceAddress)
	observability.ObserveUpstreamLatency("geo", time.Since(start).Seconds())
	if err != nil {
		e.logger.Debug("geo lookup failed", "source_address", sourceAddress, "err", err)
		return eventschema.GeoFields{Status: eventschema.GeoStatusUnresolved}
	}
	gf.Status = eventschema.GeoStatusResolved
	return gf
}

type upstreamResponse struct {
	Country      string  `json:"country"`
	Region       string  `json:"region"`
	City         string  `json:"city"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lon"`
	ISP          string  `json:"isp"`
	Organization string  `json:"org"`
	Timezone     string  `json:"timezone"`
}

func (e *HTTPEnricher) lookup(ctx context.Context, sourceAddress string) (eventschema.GeoFields, error) {
	u, err := url.Parse(e.cfg.UpstreamURL)
	if err != nil {
		return eventschema.GeoFields{}, fmt.Errorf("parse geo upstream url: %w", err)
	}
	q := u.Query()
	q.Set("ip", sourceAddress)
	if e.cfg.APIKey != "" {
		q.Set("key", e.cfg.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return eventschema.GeoFields{}, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return eventschema.GeoFields{}, fmt.Errorf("geo upstream call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eventschema.GeoFields{}, fmt.Errorf("geo upstream returned status %d", resp.StatusCode)
	}

	var ur upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return eventschema.GeoFields{}, fmt.Errorf("decode geo response: %w", err)
	}

	lat, lon := ur.Latitude, ur.Longitude
	return eventschema.GeoFields{
		Country:      ur.Country,
		Region:       ur.Region,
		City:         ur.City,
		Latitude:     &lat,
		Longitude:    &lon,
		ISP:          ur.ISP,
		Organization: ur.Organization,
		Timezone:     ur.Timezone,
	}, nil
}
