package settings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandlers_UpdateBasic(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandlers(svc)
	e := echo.New()

	body := `{"_token":"csrf","site_name":"Files","queue_refresh":true,"rpc_port":6801}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/basic", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.updateForm(FormBasic)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("updateForm() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[KeySiteName] != "Files" || got[KeyQueueRefresh] != "1" || got[KeyRPCPort] != "6801" {
		t.Errorf("response = %v", got)
	}
	if _, ok := got[formToken]; ok {
		t.Error("form token leaked into settings")
	}
}

func TestHandlers_UpdateRejectsForeignKey(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandlers(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/show", strings.NewReader(`{"rpc_token":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.updateForm(FormShow)(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("updateForm() error = %v, want 400", err)
	}
}
