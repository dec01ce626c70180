package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAPIHeaders(t *testing.T) {
	e := echo.New()
	e.Use(APIHeaders("/api/", "/offline/"))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/v1/status", ok)
	e.POST("/offline/complete/:secret/:gid", ok)
	e.GET("/health", ok)

	tests := []struct {
		method, path string
		noStore      bool
	}{
		{http.MethodGet, "/api/v1/status", true},
		{http.MethodPost, "/offline/complete/s3cret/2089b05ecca3d829", true},
		{http.MethodGet, "/health", false},
		{http.MethodGet, "/apiary", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
			assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
			if tt.noStore {
				assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))
			} else {
				assert.Empty(t, rec.Header().Get(echo.HeaderCacheControl))
			}
		})
	}
}
