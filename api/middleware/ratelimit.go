package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/models"
	"golang.org/x/time/rate"
)

const (
	bucketIdleTTL  = time.Hour
	bucketSweepGap = 5 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out token buckets per caller identity. One Limiter is shared
// by every route it guards, and routes differ only in how many tokens a
// request costs.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter builds a Limiter from cfg, or returns nil when limiting is
// disabled. A nil Limiter admits everything.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := max(cfg.Burst, 1)
	l := &Limiter{
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
	go l.sweepLoop()
	return l
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(bucketSweepGap)
	defer ticker.Stop()
	for now := range ticker.C {
		l.sweep(now.Add(-bucketIdleTTL))
	}
}

// sweep drops buckets idle since before cutoff.
func (l *Limiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}

func (l *Limiter) bucketFor(identity string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[identity] = b
	}
	b.lastSeen = now
	return b.limiter
}

// take spends cost tokens for identity. When the bucket is short it returns
// how long the caller should wait before the same request would pass.
func (l *Limiter) take(identity string, cost int, now time.Time) (bool, time.Duration) {
	r := l.bucketFor(identity, now).ReserveN(now, cost)
	if !r.OK() {
		return false, 0
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Charge returns middleware that spends cost tokens per request, capped at
// the burst so an expensive route stays reachable. Rejections carry a
// Retry-After header.
func (l *Limiter) Charge(cost int) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	cost = min(max(cost, 1), l.burst)

	return func(c *gin.Context) {
		// Prefer the authenticated identity; fall back to IP.
		identity := c.ClientIP()
		if v, exists := c.Get(IdentityKey); exists {
			identity = fmt.Sprint(v)
		}

		ok, wait := l.take(identity, cost, time.Now())
		if !ok {
			if wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}
		c.Next()
	}
}

// RateLimit is a standalone one-token-per-request limiter.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	return NewLimiter(cfg).Charge(1)
}
