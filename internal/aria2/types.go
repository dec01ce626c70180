package aria2

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when the daemon does not know the requested gid.
	ErrNotFound = errors.New("gid not found")
	// ErrUnauthorized is returned when the daemon rejects the rpc secret.
	ErrUnauthorized = errors.New("daemon rejected rpc token")
)

// Config describes how to reach the daemon.
type Config struct {
	Host    string
	Port    int
	Token   string
	UseSSL  bool
	Timeout time.Duration
}

// URL returns the JSON-RPC endpoint.
func (c Config) URL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/jsonrpc", scheme, c.Host, c.Port)
}

// DaemonError is a daemon-reported or transport-level failure. Code is the
// JSON-RPC error code, or 0 when the daemon could not be reached.
type DaemonError struct {
	Method  string
	Code    int
	Message string
	err     error
}

func (e *DaemonError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
}

func (e *DaemonError) Unwrap() error {
	return e.err
}

// Unreachable reports whether the daemon never answered.
func (e *DaemonError) Unreachable() bool {
	return e.Code == 0
}

// Keys requested from tellActive/tellWaiting/tellStopped.
const (
	KeyGID             = "gid"
	KeyStatus          = "status"
	KeyTotalLength     = "totalLength"
	KeyCompletedLength = "completedLength"
	KeyDownloadSpeed   = "downloadSpeed"
	KeyBitTorrent      = "bittorrent"
	KeyFiles           = "files"
	KeyErrorCode       = "errorCode"
	KeyErrorMessage    = "errorMessage"
)

// Status is one job as reported by tellActive, tellWaiting or tellStopped.
// Numeric fields are decimal strings, as aria2 sends them.
type Status struct {
	GID             string      `json:"gid"`
	Status          string      `json:"status,omitempty"`
	TotalLength     string      `json:"totalLength,omitempty"`
	CompletedLength string      `json:"completedLength,omitempty"`
	DownloadSpeed   string      `json:"downloadSpeed,omitempty"`
	ErrorCode       string      `json:"errorCode,omitempty"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	BitTorrent      *BitTorrent `json:"bittorrent,omitempty"`
	Files           []File      `json:"files,omitempty"`
}

// BitTorrent holds the torrent metadata subset used for naming.
type BitTorrent struct {
	Info *TorrentInfo `json:"info,omitempty"`
}

// TorrentInfo is the "info" dictionary of a torrent.
type TorrentInfo struct {
	Name string `json:"name"`
}

// File is one constituent file of a job.
type File struct {
	Index           string `json:"index"`
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
	Selected        string `json:"selected"`
	URIs            []URI  `json:"uris,omitempty"`
}

// URI is a source URI of a file.
type URI struct {
	URI    string `json:"uri"`
	Status string `json:"status"`
}

// Total returns totalLength in bytes, 0 when unknown.
func (s Status) Total() int64 { return parseLength(s.TotalLength) }

// Completed returns completedLength in bytes.
func (s Status) Completed() int64 { return parseLength(s.CompletedLength) }

// Speed returns downloadSpeed in bytes per second.
func (s Status) Speed() int64 { return parseLength(s.DownloadSpeed) }

// Percent returns floor(completed/total*100). A job whose metadata is not
// resolved yet (total 0) reports 0.
func (s Status) Percent() int64 {
	total := s.Total()
	if total <= 0 {
		return 0
	}
	pct := s.Completed() * 100 / total
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Progress formats Percent as "NN%".
func (s Status) Progress() string {
	return strconv.FormatInt(s.Percent(), 10) + "%"
}

// DisplayName prefers the torrent name, then the base name of the first
// file path, then the base name of the first file's source URI.
func (s Status) DisplayName() string {
	if s.BitTorrent != nil && s.BitTorrent.Info != nil && s.BitTorrent.Info.Name != "" {
		return s.BitTorrent.Info.Name
	}
	if len(s.Files) > 0 {
		f := s.Files[0]
		if f.Path != "" {
			return path.Base(f.Path)
		}
		if len(f.URIs) > 0 && f.URIs[0].URI != "" {
			return path.Base(f.URIs[0].URI)
		}
	}
	return s.GID
}

func parseLength(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
