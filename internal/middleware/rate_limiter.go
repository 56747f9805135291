package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"moneycase/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── API rate limiter ──────────────────────────────────────────────────────────

// rateEntry tracks request counts per client within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

// RateLimiter is a per-client fixed-window limiter. Clients are keyed by the
// authenticated operator when claims are present, by IP otherwise.
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*rateEntry
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateEntry),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			key = "op:" + claims.Operator()
		}

		rl.mu.Lock()
		entry, exists := rl.entries[key]
		if !exists {
			entry = &rateEntry{}
			rl.entries[key] = entry
		}
		rl.mu.Unlock()

		entry.mu.Lock()
		now := rl.now()
		if now.After(entry.windowEnd) {
			entry.count = 0
			entry.windowEnd = now.Add(rl.window)
		}
		entry.count++
		over := entry.count > rl.limit
		retry := int(entry.windowEnd.Sub(now).Seconds()) + 1
		entry.mu.Unlock()

		if over {
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(apierror.CodeRateLimited, "too many requests, retry shortly"))
			return
		}
		c.Next()
	}
}

// ── Purge ─────────────────────────────────────────────────────────────────────
// Expired entries are dropped periodically so clients that never return do not
// accumulate.

const purgeInterval = 5 * time.Minute

// StartPurge runs until stop is closed.
func (rl *RateLimiter) StartPurge(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.purge()
			}
		}
	}()
}

func (rl *RateLimiter) purge() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	purged := 0
	for key, entry := range rl.entries {
		entry.mu.Lock()
		if now.After(entry.windowEnd) {
			delete(rl.entries, key)
			purged++
		}
		entry.mu.Unlock()
	}
	if purged > 0 {
		log.Debug().
			Int("entries_purged", purged).
			Int("entries_remaining", len(rl.entries)).
			Msg("rate limiter purged")
	}
}
