package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/health-advisor-server/internal/domain"
)

// RateLimiter admits requests per client IP with a token bucket. Buckets
// live in a bounded LRU so idle clients are evicted.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg domain.RateLimitConfig) (*RateLimiter, error) {
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = 4096
	}
	clients, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:   burst,
		clients: clients,
	}, nil
}

// Allow reports whether a request from key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	limiter, ok := r.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.clients.Add(key, limiter)
	}
	r.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			apiErr := domain.NewAPIError(domain.ErrCodeRateLimit, "Too many requests", "Rate limit exceeded. Please slow down.", c.GetString(ContextKeyCorrelationID))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": apiErr.Detail,
				"error":  apiErr,
			})
			return
		}
		c.Next()
	}
}
