package ingest

import (
	"sync/atomic"

	"github.com/htpot/collector/internal/core/observability"
)

// backpressureGate tracks in-flight store writes against a configured
// high-water mark. When the mark is exceeded, new ingest requests are
// rejected with 503 rather than queued, so producers back off and retry
// (dedup-safe via content_hash).
type backpressureGate struct {
	inFlight  atomic.Int64
	highWater int64
}

func newBackpressureGate(highWater int) *backpressureGate {
	if highWater <= 0 {
		highWater = 1000
	}
	return &backpressureGate{highWater: int64(highWater)}
}

// enter reserves a write slot. ok=false means the caller must reject the
// request; the caller must not call leave() in that case.
func (g *backpressureGate) enter() (ok bool) {
	n := g.inFlight.Add(1)
	observability.SetBackpressureQueueDepth(int(n))
	if n > g.highWater {
		g.inFlight.Add(-1)
		observability.IncBackpressureReject()
		return false
	}
	return true
}

func (g *backpressureGate) leave() {
	n := g.inFlight.Add(-1)
	observability.SetBackpressureQueueDepth(int(n))
}
