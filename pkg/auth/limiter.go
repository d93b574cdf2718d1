package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// Authoring rates. A participant types at most a message every second
// or two; editors clear moderation queues in bursts during busy
// sessions, so editor keys get extra burst headroom on top of the
// configured values.
const (
	defaultRPS          = 5
	defaultBurst        = 10
	editorBurstHeadroom = 20
)

// limiterPool throttles per caller key: the API key when one was
// presented, the remote IP otherwise. Limiters are created lazily and
// never evicted; the key space is bounded by the configured key set
// plus connecting IPs.
type limiterPool struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	cfg SecConfig
}

func (p *limiterPool) get(key string, role Role) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	rps := p.cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	if role == RoleEditor {
		burst += editorBurstHeadroom
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.m[key] = l
	return l
}

// Allow reports whether the caller may proceed right now.
func (p *limiterPool) Allow(key string, role Role) bool {
	return p.get(key, role).Allow()
}
