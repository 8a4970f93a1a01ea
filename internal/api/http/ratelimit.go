package http

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	clients   map[string]*clientLimiter
}

// NewRateLimiter allows perMinute requests per client, bursting up to the same amount.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{perMinute: perMinute, clients: map[string]*clientLimiter{}}
}

// Handle rejects the request with 429 once the client's bucket is empty.
func (m *RateLimiter) Handle(c *fiber.Ctx) error {
	if !m.limiterFor(c.IP()).Allow() {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(60/m.perMinute+1))
		return apperrors.NewTooManyRequests("too many requests")
	}
	return c.Next()
}

func (m *RateLimiter) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if entry, ok := m.clients[ip]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	m.gcLocked(now)
	entry := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute),
		lastSeen: now,
	}
	m.clients[ip] = entry
	return entry.limiter
}

func (m *RateLimiter) gcLocked(now time.Time) {
	if len(m.clients) < 1000 {
		return
	}
	cutoff := now.Add(-10 * time.Minute)
	for ip, entry := range m.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}
