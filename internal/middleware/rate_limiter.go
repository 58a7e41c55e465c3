package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
}

// RateLimit applies a process-wide token bucket to every request. One bucket
// is enough here: the API runs behind a per-instance load balancer, so the
// limit bounds what a single instance will accept, not a single caller.
func RateLimit(config RateLimiterConfig) gin.HandlerFunc {
	if config.Burst <= 0 {
		config.Burst = int(config.Rate)
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	limiter := rate.NewLimiter(config.Rate, config.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
