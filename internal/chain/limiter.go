package chain

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter throttles outbound requests with one token bucket per remote
// host, so two endpoints on the same host share a budget.
type HostLimiter struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	hosts map[string]*rate.Limiter
}

// NewHostLimiter allows perSecond requests to each host with bursts of up
// to burst.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	return &HostLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		hosts: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL may go out. A nil limiter never
// blocks.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil {
		return nil
	}
	return l.bucket(hostKey(rawURL)).Wait(ctx)
}

func (l *HostLimiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.hosts[host]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.hosts[host] = b
	}
	return b
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Host)
}
