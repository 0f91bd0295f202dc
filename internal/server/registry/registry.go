package registry

import (
	"sort"
	"sync"
	"time"
)

const DefaultTTL = 2 * time.Minute

// Registry 记录最近有流量的子域名；超过 ttl 没有新流量的视为不活跃。
type Registry struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (r *Registry) Touch(subdomain string) {
	if subdomain == "" {
		return
	}
	r.mu.Lock()
	r.seen[subdomain] = r.now()
	r.mu.Unlock()
}

// Active 返回按字母序排列的活跃子域名，同时清掉过期项。
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	out := make([]string, 0, len(r.seen))
	for sub, at := range r.seen {
		if at.Before(cutoff) {
			delete(r.seen, sub)
			continue
		}
		out = append(out, sub)
	}
	sort.Strings(out)
	return out
}
