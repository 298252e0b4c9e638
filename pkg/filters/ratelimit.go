package filters

import (
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

// DefaultLimiterIdle is how long an unused limiter survives Cleanup.
const DefaultLimiterIdle = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit is a resource filter applying a token bucket per client. The
// client key is the authenticated user ID, falling back to the remote IP.
type RateLimit struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	logger   *logging.Logger
	now      func() time.Time

	// KeyFunc overrides how clients are identified.
	KeyFunc func(ac *actions.ActionContext) string
}

// NewRateLimit creates a rate limit filter.
func NewRateLimit(requestsPerSecond float64, burst int, logger *logging.Logger) *RateLimit {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RateLimit{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idle:     DefaultLimiterIdle,
		logger:   logger,
		now:      time.Now,
	}
}

func (rl *RateLimit) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, exists := rl.limiters[key]
	if !exists {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = rl.now()
	return e.limiter
}

func (rl *RateLimit) key(ac *actions.ActionContext) string {
	if rl.KeyFunc != nil {
		return rl.KeyFunc(ac)
	}
	if id := logging.GetUserID(ac.Context()); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(ac.Request.RemoteAddr)
	if err != nil {
		host = ac.Request.RemoteAddr
	}
	return "ip:" + host
}

// OnResourceExecution implements ResourceFilter.
func (rl *RateLimit) OnResourceExecution(c *ResourceExecutingContext, next ResourceNext) error {
	key := rl.key(c.ActionContext)
	if !rl.getLimiter(key).AllowN(rl.now(), 1) {
		rl.logger.LogSecurityEvent(c.Context(), "rate_limit_exceeded", map[string]interface{}{
			"key":    key,
			"action": c.Descriptor.DisplayName(),
			"path":   c.Request.URL.Path,
		})
		c.Response.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
		c.Result = results.ErrorResult{Err: errors.RateLimitExceeded(float64(rl.rate), "1s")}
		return nil
	}
	next()
	return nil
}

func (rl *RateLimit) retryAfter() int {
	if rl.rate <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / float64(rl.rate)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Cleanup removes limiters unused for longer than the idle window and
// returns how many were removed. The host schedules it periodically.
func (rl *RateLimit) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	removed := 0
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (rl *RateLimit) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
