package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const ClaimsKey = "adminClaims"

// TokenValidator validates admin tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// AdminAuth rejects requests without a valid admin bearer token. Browsers
// cannot set headers on WebSocket upgrades, so those may pass ?token=.
func AdminAuth(validator TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearerToken(c)
			if token == "" && c.IsWebSocket() {
				token = c.QueryParam("token")
			}
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token")
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

func extractBearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return parts[1]
}
