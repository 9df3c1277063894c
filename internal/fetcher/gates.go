package fetcher

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// DefaultRateLimits returns requests-per-minute limits for high-volume
// providers. Services absent from the map carry no local gate.
func DefaultRateLimits() map[string]int {
	return map[string]int{
		string(model.ServiceStripe):  100,
		string(model.ServicePlaid):   100,
		string(model.ServiceMercury): 60,
	}
}

// serviceGates holds one token-bucket limiter per service type, sized from a
// requests-per-minute budget. The gate is checked non-blocking: when the
// window is exhausted the fetch layer serves stale or empty immediately
// instead of queuing.
type serviceGates struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]int
}

func newServiceGates(limits map[string]int) *serviceGates {
	return &serviceGates{
		limiters: make(map[string]*rate.Limiter),
		limits:   limits,
	}
}

// allow reports whether a request for the service may proceed now. Services
// without a configured limit are always allowed.
func (g *serviceGates) allow(service string) bool {
	perMinute, ok := g.limits[service]
	if !ok || perMinute <= 0 {
		return true
	}

	g.mu.Lock()
	lim, ok := g.limiters[service]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(perMinute)/60, perMinute)
		g.limiters[service] = lim
	}
	g.mu.Unlock()

	return lim.Allow()
}
