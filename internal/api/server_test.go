package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/testutil"
	"github.com/driveindex/driveindex/internal/upload"
)

const (
	testPassword = "testpassword123"
	testRPCToken = "rpc-secret"
)

// fakeDaemon answers the aria2 JSON-RPC methods the server uses.
type fakeDaemon struct {
	mu      sync.Mutex
	methods []string
	srv     *httptest.Server
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	d := &fakeDaemon{}
	d.srv = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDaemon) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	d.methods = append(d.methods, req.Method)
	d.mu.Unlock()

	var result any
	switch req.Method {
	case "aria2.getVersion":
		result = map[string]any{"version": "1.37.0"}
	case "aria2.addUri":
		result = "0000000000000001"
	case "aria2.tellActive":
		result = []map[string]any{{
			"gid": "a1", "status": "active", "totalLength": "200", "completedLength": "50",
			"downloadSpeed": "1024", "files": []map[string]any{{"path": "/dl/big.iso"}},
		}}
	case "aria2.tellWaiting", "aria2.tellStopped":
		result = []any{}
	default:
		result = "OK"
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (d *fakeDaemon) hostPort(t *testing.T) (string, int) {
	t.Helper()
	u, err := url.Parse(d.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (d *fakeDaemon) Methods() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.methods...)
}

type testServer struct {
	*Server
	daemon     *fakeDaemon
	adminToken string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	daemon := newFakeDaemon(t)
	host, port := daemon.hostPort(t)

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.Auth.AdminPassword = testPassword
	cfg.Aria2.Host = host
	cfg.Aria2.Port = port
	cfg.Aria2.Token = testRPCToken
	cfg.Aria2.Timeout = 5 * time.Second

	sink, err := upload.NewLocalSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalSink() error = %v", err)
	}

	server, err := NewServer(context.Background(), tdb.Conn, nil, nil, sink, nil, cfg, tdb.Logger)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	token, _, err := server.authService.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	return &testServer{Server: server, daemon: daemon, adminToken: token}
}

func (ts *testServer) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.adminToken)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := setupTestServer(t)

	for _, path := range []string{"/api/v1/offline", "/api/v1/settings/basic", "/api/v1/status"} {
		rec := ts.do(t, http.MethodGet, path, "", false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, rec.Code)
		}
	}
}

func TestLoginWithSeededPassword(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", `{"password":"`+testPassword+`"}`, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response = %s", rec.Body.String())
	}
}

func TestOfflineListAndSubmit(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/offline", `{"url":"http://example.com/file.zip","path":"/backup"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/offline", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}

	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want one active row", rows)
	}
	if rows[0]["gid"] != "a1" || rows[0]["progress"] != "25%" || rows[0]["action"] != "pause" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestCompletionCallback(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/offline/complete/wrong/abc", "", false)
	if rec.Code != http.StatusUnauthorized || rec.Body.String() != "unauthrized" {
		t.Errorf("bad token: %d %q", rec.Code, rec.Body.String())
	}

	for _, m := range ts.daemon.Methods() {
		if m == "aria2.getFiles" {
			t.Error("daemon queried for files with a bad token")
		}
	}
}

func TestDaemonSettingsChangeRebuildsClient(t *testing.T) {
	ts := setupTestServer(t)
	other := newFakeDaemon(t)
	host, port := other.hostPort(t)

	body := `{"rpc_url":"` + host + `","rpc_port":"` + strconv.Itoa(port) + `","rpc_token":"new-token"}`
	rec := ts.do(t, http.MethodPut, "/api/v1/settings/basic", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/offline", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(other.Methods()) == 0 {
		t.Error("listing did not reach the newly configured daemon")
	}

	// The callback secret follows the rpc token.
	rec = ts.do(t, http.MethodGet, "/offline/complete/"+testRPCToken+"/abc", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("old token accepted: %d", rec.Code)
	}
}

func TestRedactCallback(t *testing.T) {
	tests := map[string]string{
		"/offline/complete/secret/gid1": "/offline/complete/***/gid1",
		"/offline/complete/secret":      "/offline/complete/***",
		"/api/v1/offline":               "/api/v1/offline",
	}
	for in, want := range tests {
		if got := redactCallback(in); got != want {
			t.Errorf("redactCallback(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthCheckComponents(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/health/check", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var sum struct {
		Healthy bool `json:"healthy"`
		Items   []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sum.Healthy || len(sum.Items) != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	for _, item := range sum.Items {
		if item.Status != "ok" {
			t.Errorf("%s status = %s, want ok", item.ID, item.Status)
		}
	}
}
