package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuth_TokenSources(t *testing.T) {
	svc := newTestService(t)
	token, _, err := svc.GenerateToken()
	require.NoError(t, err)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		if _, ok := c.Get(ClaimsKey).(*Claims); !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.NoContent(http.StatusOK)
	}, AdminAuth(svc))

	upgrade := func(r *http.Request) {
		r.Header.Set(echo.HeaderConnection, "Upgrade")
		r.Header.Set(echo.HeaderUpgrade, "websocket")
	}
	bearer := func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+token) }

	tests := []struct {
		name   string
		target string
		setup  []func(*http.Request)
		want   int
	}{
		{"bearer header", "/ws", []func(*http.Request){bearer}, http.StatusOK},
		{"upgrade with query token", "/ws?token=" + token, []func(*http.Request){upgrade}, http.StatusOK},
		{"upgrade with bad query token", "/ws?token=" + token + "x", []func(*http.Request){upgrade}, http.StatusUnauthorized},
		{"upgrade without token", "/ws", []func(*http.Request){upgrade}, http.StatusUnauthorized},
		{"query token on plain request", "/ws?token=" + token, nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for _, f := range tt.setup {
				f(req)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
