package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Limiter admits or rejects a request for key.
type Limiter interface {
	IsAllowed(key string) bool
	RetryAfter(key string) time.Duration
}

// RejectFunc writes the response for a request over budget.
type RejectFunc func(c echo.Context, retryAfter time.Duration) error

// RateLimit rejects requests over the per-client-IP budget. The Retry-After header
// is set before reject is called; a nil reject answers with echo's bare 429.
// Routes listed in exempt are never counted.
func RateLimit(lim Limiter, reject RejectFunc, exempt ...string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(exempt))
	for _, r := range exempt {
		skip[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skip[c.Path()]; ok {
				return next(c)
			}
			key := c.RealIP()
			if lim.IsAllowed(key) {
				return next(c)
			}
			wait := lim.RetryAfter(key)
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if reject == nil {
				return echo.ErrTooManyRequests
			}
			return reject(c, wait)
		}
	}
}
