package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/bazaar/internal/domain"
)

// RateLimiterConfig sets a token bucket per key: RequestsPerSecond refill,
// BurstSize capacity. Idle full buckets are dropped every CleanupInterval.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
	KeyFunc           func(r *http.Request) string // defaults to ShopperOrIP
}

// DefaultRateLimiterConfig suits cart and wishlist traffic.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
		KeyFunc:           ShopperOrIP,
	}
}

// StrictRateLimiterConfig limits order placement. Each placement can create a
// marketplace order and a gateway order, so a stuck button must not hammer them.
func StrictRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 0.2,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
		KeyFunc:           ShopperOrIP,
	}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// RateLimiter is an in-memory limiter. One instance serves one route group.
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts the limiter's cleanup loop. Call Stop when done.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ShopperOrIP
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow spends one token for key if one is available.
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key, time.Now())
	return ok
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	ok, _ := rl.take(key, now)
	return ok
}

// take spends a token, or reports how long until one is available.
func (rl *RateLimiter) take(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	capacity := float64(rl.config.BurstSize)
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, seen: now}
		rl.buckets[key] = b
	}
	b.tokens = math.Min(capacity, b.tokens+now.Sub(b.seen).Seconds()*rl.config.RequestsPerSecond)
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if rl.config.RequestsPerSecond <= 0 {
		return false, rl.config.CleanupInterval
	}
	return false, time.Duration((1 - b.tokens) / rl.config.RequestsPerSecond * float64(time.Second))
}

// sweep drops buckets that have refilled and sat idle for a whole interval.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		idle := now.Sub(b.seen)
		refilled := b.tokens+idle.Seconds()*rl.config.RequestsPerSecond >= float64(rl.config.BurstSize)
		if refilled && idle > rl.config.CleanupInterval {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			rl.sweep(now)
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware answers 429 with Retry-After once the key's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.take(rl.config.KeyFunc(r), time.Now())
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			respondTooManyRequests(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ShopperOrIP keys limits by shopper so that shoppers behind one NAT do not
// share a bucket. Anonymous requests fall back to the client IP.
func ShopperOrIP(r *http.Request) string {
	if id := domain.ShopperIDFromContext(r.Context()); id != "" {
		return "shopper:" + id
	}
	return "ip:" + GetClientIP(r)
}
