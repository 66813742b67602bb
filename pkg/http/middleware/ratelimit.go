package middleware

import (
	"github.com/labstack/echo/v4"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit returns denied for requests over the limit, keyed by client IP.
// denied should carry a 429 status for the error handler.
func RateLimit(limiter Limiter, denied error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "60")
				return denied
			}
			return next(c)
		}
	}
}
