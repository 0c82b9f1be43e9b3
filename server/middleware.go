package server

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/ratelimit"
)

// requestLogger logs one line per request. Query strings carry ID tokens
// and are never logged.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("INFO: %s %s %d %s %s", v.Method, v.URIPath, v.Status, v.Latency.Round(time.Millisecond), v.RemoteIP)
			return nil
		},
	})
}

// securityHeaders marks every response as uncacheable. Embed URLs are
// single use and must not be stored by proxies.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if c.Request().TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}
			return next(c)
		}
	}
}

// rateLimit rejects clients over their limit with 429 and Retry-After.
// Limiter errors are logged and the request is let through.
func rateLimit(limiter ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				log.Printf("WARNING: rate limiter error for %s: %v", c.RealIP(), err)
			}
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
				return relayerrors.New(relayerrors.KindRateLimited, http.StatusText(http.StatusTooManyRequests), nil)
			}
			return next(c)
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
