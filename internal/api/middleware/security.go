// Package middleware holds echo middleware shared by all routes.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// APIHeaders marks every response as inert JSON that no page may embed or
// execute. Responses under noStore carry tokens or live job state and are
// never cached.
func APIHeaders(noStore ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			// The callback path embeds the rpc secret.
			h.Set("Referrer-Policy", "no-referrer")

			path := c.Request().URL.Path
			for _, p := range noStore {
				if strings.HasPrefix(path, p) {
					h.Set(echo.HeaderCacheControl, "no-store")
					break
				}
			}
			return next(c)
		}
	}
}
