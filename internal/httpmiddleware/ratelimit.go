package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SimpleTokenBucket is an in-memory per-IP rate limiter. The bucket map is
// bounded: a bucket idle past the TTL is dropped the next time its key is
// seen, and reaching the key cap triggers one full sweep before deciding
// whether a new client can be tracked. Address churn therefore cannot grow
// the map past maxKeys, and the common request path never scans the map.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	ttl      time.Duration
	maxKeys  int
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates a limiter with capacity tokens and rate per
// minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		ttl:      10 * time.Minute,
		maxKeys:  10000,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *SimpleTokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()

	b, ok := l.state[key]
	if ok && now.Sub(b.last) > l.ttl {
		// Stale bucket; the client starts over with a full bucket.
		delete(l.state, key)
		ok = false
	}
	if !ok {
		if len(l.state) >= l.maxKeys {
			// Full map sweep only when at the cap, so steady-state
			// requests never pay for it.
			l.evict(now)
		}
		if len(l.state) >= l.maxKeys {
			// Over the cap new clients are allowed but not tracked.
			return true
		}
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// evict drops buckets idle past the TTL. Runs under the caller's lock.
func (l *SimpleTokenBucket) evict(now time.Time) {
	for key, b := range l.state {
		if now.Sub(b.last) > l.ttl {
			delete(l.state, key)
		}
	}
}
