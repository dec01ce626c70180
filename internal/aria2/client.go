// Package aria2 is a JSON-RPC client for the aria2 download daemon.
package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client issues JSON-RPC calls against one daemon.
type Client struct {
	config     Config
	httpClient *http.Client
	requestID  atomic.Int64
}

// New creates a client for the given daemon.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Config returns the connection settings the client was built with.
func (c *Client) Config() Config {
	return c.config
}

// GetVersion returns the daemon version string.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "aria2.getVersion", &resp); err != nil {
		return "", err
	}
	if resp.Version == "" {
		return "", &DaemonError{Method: "aria2.getVersion", Message: "empty version response"}
	}
	return resp.Version, nil
}

// AddURI starts a download of uri and returns its gid.
func (c *Client) AddURI(ctx context.Context, uri string) (string, error) {
	var gid string
	if err := c.call(ctx, "aria2.addUri", &gid, []string{uri}); err != nil {
		return "", err
	}
	if gid == "" {
		return "", &DaemonError{Method: "aria2.addUri", Message: "daemon returned an empty gid"}
	}
	return gid, nil
}

// TellActive lists active downloads, limited to keys when given.
func (c *Client) TellActive(ctx context.Context, keys ...string) ([]Status, error) {
	var out []Status
	params := []any{}
	if len(keys) > 0 {
		params = append(params, keys)
	}
	if err := c.call(ctx, "aria2.tellActive", &out, params...); err != nil {
		return nil, err
	}
	return out, nil
}

// TellWaiting lists waiting and paused downloads.
func (c *Client) TellWaiting(ctx context.Context, offset, num int, keys ...string) ([]Status, error) {
	return c.tellRange(ctx, "aria2.tellWaiting", offset, num, keys)
}

// TellStopped lists completed, errored and removed downloads.
func (c *Client) TellStopped(ctx context.Context, offset, num int, keys ...string) ([]Status, error) {
	return c.tellRange(ctx, "aria2.tellStopped", offset, num, keys)
}

// GetFiles lists the files of a job. Unknown gids yield ErrNotFound.
func (c *Client) GetFiles(ctx context.Context, gid string) ([]File, error) {
	var out []File
	if err := c.call(ctx, "aria2.getFiles", &out, gid); err != nil {
		return nil, err
	}
	return out, nil
}

// ForcePause pauses a job without waiting for peers to be contacted.
func (c *Client) ForcePause(ctx context.Context, gid string) error {
	return c.call(ctx, "aria2.forcePause", nil, gid)
}

// Unpause moves a paused job back to waiting.
func (c *Client) Unpause(ctx context.Context, gid string) error {
	return c.call(ctx, "aria2.unpause", nil, gid)
}

// ForceRemove removes a job. Jobs that already stopped are purged from the
// daemon's result list instead.
func (c *Client) ForceRemove(ctx context.Context, gid string) error {
	err := c.call(ctx, "aria2.forceRemove", nil, gid)
	if err == nil {
		return nil
	}
	if de, ok := err.(*DaemonError); ok && !de.Unreachable() {
		if rerr := c.call(ctx, "aria2.removeDownloadResult", nil, gid); rerr == nil {
			return nil
		}
	}
	return err
}

func (c *Client) tellRange(ctx context.Context, method string, offset, num int, keys []string) ([]Status, error) {
	var out []Status
	params := []any{offset, num}
	if len(keys) > 0 {
		params = append(params, keys)
	}
	if err := c.call(ctx, method, &out, params...); err != nil {
		return nil, err
	}
	return out, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs one JSON-RPC round trip and decodes the result into out
// (skipped when out is nil). Every failure is returned as *DaemonError.
func (c *Client) call(ctx context.Context, method string, out any, extraParams ...any) error {
	id := c.requestID.Add(1)

	params := make([]any, 0, len(extraParams)+1)
	if c.config.Token != "" {
		params = append(params, "token:"+c.config.Token)
	}
	params = append(params, extraParams...)

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      strconv.FormatInt(id, 10),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return &DaemonError{Method: method, Message: "failed to marshal request", err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL(), bytes.NewReader(body))
	if err != nil {
		return &DaemonError{Method: method, Message: "failed to create request", err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DaemonError{Method: method, Message: err.Error(), err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DaemonError{Method: method, Message: "failed to read response", err: err}
	}

	// aria2 answers rpc errors with 400 and a JSON body, so decode first and
	// only fall back to the HTTP status.
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &DaemonError{Method: method, Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
		}
		return &DaemonError{Method: method, Message: "failed to decode response", err: err}
	}

	if rpcResp.Error != nil {
		return newRPCError(method, rpcResp.Error)
	}

	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return &DaemonError{Method: method, Message: "unexpected result shape", err: err}
	}
	return nil
}

func newRPCError(method string, e *rpcError) *DaemonError {
	de := &DaemonError{Method: method, Code: e.Code, Message: e.Message}
	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "unauthorized"):
		de.err = ErrUnauthorized
	case strings.Contains(msg, "not found"),
		strings.HasPrefix(msg, "invalid gid"),
		strings.HasPrefix(msg, "no file data is available"):
		de.err = ErrNotFound
	}
	return de
}
