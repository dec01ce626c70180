package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalSink copies files under a root directory. It stands in for remote
// storage on single-host installs and in tests.
type LocalSink struct {
	root string
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(dir string) (*LocalSink, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &LocalSink{root: abs}, nil
}

func (s *LocalSink) Name() string { return "local" }

// Check verifies the root is still a writable directory.
func (s *LocalSink) Check(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("upload root %s is not a directory", s.root)
	}
	f, err := os.CreateTemp(s.root, ".writecheck-*")
	if err != nil {
		return fmt.Errorf("upload root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Destination returns the absolute path an item is copied to.
func (s *LocalSink) Destination(item Item) string {
	return filepath.Join(s.root, filepath.FromSlash(item.RemoteName()))
}

// Upload copies the file in ChunkSize blocks, reporting progress after each.
func (s *LocalSink) Upload(ctx context.Context, item Item, progress ProgressFunc) error {
	src, err := os.Open(item.LocalPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", item.LocalPath)
	}

	dest := s.Destination(item)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp := dest + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := copyChunks(ctx, dst, src, item.ChunkSize, info.Size(), progress); err != nil {
		dst.Close()
		os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, chunk, total int64, progress ProgressFunc) error {
	if chunk <= 0 {
		chunk = 1 << 20
	}
	buf := make([]byte, chunk)
	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			sent += int64(n)
			if progress != nil {
				progress(sent, total)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	if sent == 0 && progress != nil {
		progress(0, total)
	}
	return nil
}
