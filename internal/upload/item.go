// Package upload moves finished downloads from local disk to remote storage.
package upload

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Item is one file waiting to be transferred. RemotePath is a directory; the
// object is stored under it at RelPath, or at the base name of LocalPath
// when RelPath is empty.
type Item struct {
	ID         string `json:"id"`
	LocalPath  string `json:"local"`
	RemotePath string `json:"remote"`
	// RelPath is the slash-separated path of the file inside its download,
	// which keeps same-named files of one download apart.
	RelPath   string `json:"rel,omitempty"`
	ChunkSize int64  `json:"chunk"`
	ClientID  string `json:"clientId"`
	GID       string `json:"gid"`
}

// NewItem builds a work item with a fresh id.
func NewItem(localPath, remotePath string, chunkSize int64, clientID, gid string) Item {
	return Item{
		ID:         uuid.NewString(),
		LocalPath:  localPath,
		RemotePath: remotePath,
		ChunkSize:  chunkSize,
		ClientID:   clientID,
		GID:        gid,
	}
}

// RemoteName is the slash-separated destination of the file, relative to
// the sink root.
func (i Item) RemoteName() string {
	name := filepath.Base(i.LocalPath)
	if rel := cleanSlash(i.RelPath); rel != "" {
		name = rel
	}
	return path.Join(cleanSlash(i.RemotePath), name)
}

// cleanSlash normalizes p to a relative slash path that cannot climb out
// of its parent.
func cleanSlash(p string) string {
	return strings.Trim(path.Clean("/"+filepath.ToSlash(p)), "/")
}

// ProgressFunc receives the number of bytes sent so far and the file size.
type ProgressFunc func(sent, total int64)

// Sink stores a file on remote storage.
type Sink interface {
	Name() string
	Upload(ctx context.Context, item Item, progress ProgressFunc) error
}

// Checker is implemented by sinks that can verify their destination is
// reachable without uploading anything.
type Checker interface {
	Check(ctx context.Context) error
}

// Tracker observes the lifecycle of work items.
type Tracker interface {
	UploadStarted(item Item)
	UploadProgress(item Item, sent, total, bytesPerSec int64)
	UploadFinished(item Item, err error)
}
