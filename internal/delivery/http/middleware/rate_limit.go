package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"

	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// ByClientIP counts requests per caller address.
func ByClientIP(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// ByOperator counts requests per authenticated user so that operators behind
// one office NAT do not share a bucket. Unauthenticated requests fall back to IP.
func ByOperator(r *http.Request) string {
	if user := UserFromContext(r.Context()); user != nil && user.ID != "" {
		return "user:" + user.ID
	}
	return ByClientIP(r)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit configures one limiter.
type RateLimit struct {
	Name  string
	Limit rate.Limit
	Burst int
	Key   KeyFunc
	// CleanupPeriod is how often idle buckets are dropped; ClientTTL is how
	// long a bucket may stay idle.
	CleanupPeriod time.Duration
	ClientTTL     time.Duration
}

// RateLimiter keeps one token bucket per key until the key goes idle.
type RateLimiter struct {
	cfg     RateLimit
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRateLimiter starts the cleanup loop; call Shutdown to stop it.
func NewRateLimiter(ctx context.Context, cfg RateLimit) *RateLimiter {
	if cfg.Key == nil {
		cfg.Key = ByClientIP
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = time.Minute
	}
	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = 3 * time.Minute
	}
	rl := &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	rl.ctx, rl.cancel = context.WithCancel(ctx)
	go rl.cleanupLoop()
	return rl
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.cfg.Key(r)
			res, at := rl.reserve(key)
			if !res.OK() {
				rl.reject(w, r, key, time.Second)
				return
			}
			if delay := res.DelayFrom(at); delay > 0 {
				res.CancelAt(at)
				rl.reject(w, r, key, delay)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Wrap applies the limiter to a single route handler.
func (rl *RateLimiter) Wrap(h http.Handler) http.Handler {
	return rl.Middleware()(h)
}

func (rl *RateLimiter) reject(w http.ResponseWriter, r *http.Request, key string, retryIn time.Duration) {
	seconds := int(retryIn.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	logger.WithContext(r.Context()).Warn().
		Str("limiter", rl.cfg.Name).
		Str("key", key).
		Str("path", r.URL.Path).
		Msg("rate limit exceeded")
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	utils.WriteError(w, http.StatusTooManyRequests, "Too Many Requests")
}

func (rl *RateLimiter) reserve(key string) (*rate.Reservation, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.cfg.Limit, rl.cfg.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.ReserveN(now, 1), now
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.cfg.ClientTTL {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Shutdown stops the cleanup goroutine.
func (rl *RateLimiter) Shutdown() {
	rl.cancel()
}
