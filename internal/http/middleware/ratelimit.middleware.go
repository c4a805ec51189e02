package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

// maxTrackedKeys bounds the number of clients tracked before idle entries are
// pruned.
const maxTrackedKeys = 10000

// RateLimiter is an in-process sliding window limiter: a key may make at most
// limit calls in any window.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   map[string][]time.Time{},
		now:    time.Now,
	}
}

// Allow records a call for key and reports whether it is within the limit.
// Rejected calls are not recorded.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if len(l.hits) > maxTrackedKeys {
		l.prune(cutoff)
	}

	recent := dropBefore(l.hits[key], cutoff)
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

func (l *RateLimiter) prune(cutoff time.Time) {
	for key, times := range l.hits {
		if kept := dropBefore(times, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

// dropBefore returns the suffix of the ascending times that is after cutoff.
func dropBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// RateLimit rejects clients, keyed by IP, that exceed l with 429.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			err := apperrors.New(apperrors.KindRateLimited, "Rate limit exceeded. Please try again later.")
			c.AbortWithStatusJSON(utils.ErrorResponse(err))
			return
		}
		c.Next()
	}
}
