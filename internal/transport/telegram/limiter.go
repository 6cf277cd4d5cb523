package telegram

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultEventsPerSecond = 5
	defaultBurst           = 10
)

// limiterPool holds one token bucket per user.
type limiterPool struct {
	mu    sync.Mutex
	m     map[int64]*rate.Limiter
	rps   float64
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultEventsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		m:     make(map[int64]*rate.Limiter),
		rps:   rps,
		burst: burst,
	}
}

func (p *limiterPool) get(user int64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[user]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[user] = l
	return l
}

func (p *limiterPool) Allow(user int64) bool {
	return p.get(user).Allow()
}
