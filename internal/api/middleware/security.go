package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// dashboardCSP allows the page's inline refresh script, backend thumbnails
// and the same-origin websocket.
const dashboardCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; img-src * data:; connect-src 'self'; frame-ancestors 'self'"

// SecurityHeaders sets the response headers every dashboard route carries.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", dashboardCSP)

			// View state changes on every tick
			path := c.Request().URL.Path
			if strings.HasPrefix(path, "/api") || path == "/fragment" {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}

// LoopbackOnly rejects requests whose Host header does not name the
// listener, which blocks DNS rebinding against a loopback dashboard.
func LoopbackOnly(allowed ...string) echo.MiddlewareFunc {
	hosts := make(map[string]bool, len(allowed))
	for _, h := range allowed {
		hosts[strings.ToLower(h)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(hosts) == 0 {
				return next(c)
			}
			host := strings.ToLower(c.Request().Host)
			if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
				host = host[:i]
			}
			if !hosts[host] {
				return echo.ErrForbidden
			}
			return next(c)
		}
	}
}
