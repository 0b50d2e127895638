package middleware

import (
	"time"

	"StockForecaster/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. The query string is left out
// since it may carry API keys.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			l.Info("http request",
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency_ms", time.Since(start)),
				logger.String("remote_ip", c.RealIP()),
			)
			return nil
		}
	}
}
