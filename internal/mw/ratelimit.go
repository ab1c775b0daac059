package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// staleAfter controls when an idle client's limiter is dropped. Polling
// clients hit the API every second, so an hour of silence means gone.
const staleAfter = time.Hour

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter stores a rate limiter for each client IP address.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	r       rate.Limit
	b       int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		clients: make(map[string]*clientLimiter),
		r:       r,
		b:       b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating one on
// first sight and pruning limiters for IPs not seen recently.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	cl, exists := i.clients[ip]
	if !exists {
		i.prune(now)
		cl = &clientLimiter{limiter: rate.NewLimiter(i.r, i.b)}
		i.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// prune drops limiters for clients idle longer than staleAfter. Called
// with the mutex held.
func (i *IPRateLimiter) prune(now time.Time) {
	for ip, cl := range i.clients {
		if now.Sub(cl.lastSeen) > staleAfter {
			delete(i.clients, ip)
		}
	}
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
