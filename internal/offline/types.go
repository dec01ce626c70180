// Package offline tracks offline downloads handed to the aria2 daemon and
// relays finished downloads into the upload pipeline.
package offline

import (
	"errors"
	"fmt"
	"time"
)

// ChunkSize is the upload chunk size attached to every upload work item.
const ChunkSize = 3276800

var (
	ErrJobNotFound         = errors.New("download job not found")
	ErrGIDNotFound         = errors.New("gid not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDaemonNotConfigured = errors.New("download daemon is not configured")
)

// ValidationError reports a bad request field. It is returned before any
// daemon call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Status is the stored lifecycle state of a job.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusUploading   Status = "uploading"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
)

// Action is the control affordance shown next to a listing row.
type Action string

const (
	ActionPause    Action = "pause"
	ActionUnpause  Action = "unpause"
	ActionDelete   Action = "delete"
	ActionDisabled Action = "disabled"
)

// Job is one persisted download.
type Job struct {
	ID           int64     `json:"id"`
	GID          string    `json:"gid"`
	Name         string    `json:"name"`
	UploadPath   string    `json:"uploadPath"`
	ClientID     string    `json:"clientId"`
	Status       Status    `json:"status"`
	Progress     string    `json:"progress"`
	Speed        int64     `json:"speed"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Row is one line of the combined download listing.
type Row struct {
	Name     string `json:"name"`
	Action   Action `json:"action"`
	GID      string `json:"gid"`
	Status   string `json:"status"`
	Progress string `json:"progress"`
	Speed    string `json:"speed"`
}

// SubmitInput is a request to start a new offline download.
type SubmitInput struct {
	URL      string `json:"url" form:"url"`
	Path     string `json:"path" form:"path"`
	ClientID string `json:"client_id" form:"client_id"`
}

// ControlInput is a pause/unpause/delete request.
type ControlInput struct {
	Action Action `json:"action" form:"action"`
	GID    string `json:"gid" form:"gid"`
}
