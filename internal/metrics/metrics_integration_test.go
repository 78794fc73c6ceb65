package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/htpot/collector/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)
	observability.ExposeBuildInfo("test")

	start := time.Now()
	observability.ObserveHTTP("POST", "/ingest", 200, time.Since(start).Seconds())
	observability.ObserveHTTP("GET", "/stats", 200, 0.010)

	observability.AddCacheHits("l2", 3)
	observability.AddCacheMisses("l2", 1)
	observability.ObserveCacheOp("mget", nil, 0.002)

	observability.SetBackpressureQueueDepth(42)
	observability.IncIngestError("decode")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`http_request_duration_seconds_bucket`,
		`redis_operation_duration_seconds_count`,
		`cache_hits_total{tier="l2"} 3`,
		`cache_misses_total{tier="l2"} 1`,
		`backpressure_queue_depth 42`,
		`ingest_errors_total{kind="decode"} `,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "http_requests_total",
		`method="POST"`, `route="/ingest"`, `status="200"`)
	assertHasMetricLine(t, body, "http_requests_total",
		`method="GET"`, `route="/stats"`, `status="200"`)
	assertHasMetricLine(t, body, "app_build_info",
		`version="test"`)
}
