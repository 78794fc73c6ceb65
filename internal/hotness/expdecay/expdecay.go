// Package expdecay implements an exponential decay model for source-address
// hotness scores, sharded and hashed for concurrent access.
package expdecay

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/htpot/collector/internal/hotness"
)

const numShards = 64

type Tracker struct {
	HalfLife time.Duration

	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*counter
}

type counter struct {
	score float64
	last  time.Time
}

var _ hotness.Interface = (*Tracker)(nil)

func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	t := &Tracker{HalfLife: halfLife, now: time.Now}
	for i := range t.shards {
		t.shards[i].m = make(map[string]*counter)
	}
	return t
}

func (t *Tracker) Inc(sourceAddress string) {
	if sourceAddress == "" {
		return
	}
	s := t.pick(sourceAddress)
	n := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.m[sourceAddress]
	if c == nil {
		s.m[sourceAddress] = &counter{score: 1, last: n}
		return
	}
	dt := n.Sub(c.last).Seconds()
	// apply exponential decay to the existing score before incrementing
	c.score = decay(c.score, dt, t.HalfLife.Seconds()) + 1.0
	c.last = n
}

func (t *Tracker) Score(sourceAddress string) float64 {
	if sourceAddress == "" {
		return 0
	}
	s := t.pick(sourceAddress)
	n := t.now()

	s.mu.RLock()
	c := s.m[sourceAddress]
	if c == nil {
		s.mu.RUnlock()
		return 0
	}
	score, last := c.score, c.last
	s.mu.RUnlock()

	dt := n.Sub(last).Seconds()
	return decay(score, dt, t.HalfLife.Seconds())
}

func (t *Tracker) Reset(sourceAddresses ...string) {
	for _, addr := range sourceAddresses {
		if addr == "" {
			continue
		}
		s := t.pick(addr)
		s.mu.Lock()
		delete(s.m, addr)
		s.mu.Unlock()
	}
}

func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	lambda := math.Ln2 / halfLife
	return score * math.Exp(-lambda*dt)
}

func (t *Tracker) pick(sourceAddress string) *shard {
	h := xxhash.Sum64String(sourceAddress)
	idx := h & (uint64(len(t.shards)) - 1)
	return &t.shards[idx]
}

func (t *Tracker) Size() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].m)
		t.shards[i].mu.RUnlock()
	}
	return total
}
