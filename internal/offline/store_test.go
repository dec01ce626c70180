package offline

import (
	"context"
	"errors"
	"testing"

	"github.com/driveindex/driveindex/internal/testutil"
)

func TestStore_CreateAndGet(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	store := NewStore(tdb.Conn)
	ctx := context.Background()

	job, err := store.Create(ctx, &Job{GID: "g1", Name: "file.iso", UploadPath: "/isos", ClientID: "c1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if job.ID == 0 {
		t.Error("Create() job.ID = 0, want non-zero")
	}
	if job.Status != StatusDownloading {
		t.Errorf("Status = %q, want %q", job.Status, StatusDownloading)
	}
	if job.Progress != "0%" {
		t.Errorf("Progress = %q, want 0%%", job.Progress)
	}

	got, err := store.GetByGID(ctx, "g1")
	if err != nil {
		t.Fatalf("GetByGID() error = %v", err)
	}
	if got.UploadPath != "/isos" || got.ClientID != "c1" || got.Name != "file.iso" {
		t.Errorf("GetByGID() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestStore_UniqueGID(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	store := NewStore(tdb.Conn)
	ctx := context.Background()

	if _, err := store.Create(ctx, &Job{GID: "dup", UploadPath: "/a"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, &Job{GID: "dup", UploadPath: "/b"}); err == nil {
		t.Fatal("expected unique constraint violation for duplicate gid")
	}

	// A gid may be reused once the old job is deleted.
	if err := store.Delete(ctx, "dup"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Create(ctx, &Job{GID: "dup", UploadPath: "/c"}); err != nil {
		t.Fatalf("Create() after delete error = %v", err)
	}
}

func TestStore_MissingGID(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	store := NewStore(tdb.Conn)
	ctx := context.Background()

	if _, err := store.GetByGID(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetByGID() error = %v, want ErrJobNotFound", err)
	}
	if err := store.UpdateStatus(ctx, "nope", StatusPaused); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrJobNotFound", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Delete() error = %v, want ErrJobNotFound", err)
	}
}

func TestStore_ListByStatus(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	store := NewStore(tdb.Conn)
	ctx := context.Background()

	for gid, status := range map[string]Status{
		"a": StatusDownloading,
		"b": StatusUploading,
		"c": StatusSuccess,
		"d": StatusPaused,
	} {
		if _, err := store.Create(ctx, &Job{GID: gid, UploadPath: "/x", Status: status}); err != nil {
			t.Fatalf("Create(%s) error = %v", gid, err)
		}
	}

	jobs, err := store.ListByStatus(ctx, StatusUploading, StatusSuccess)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("ListByStatus() returned %d jobs, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.Status != StatusUploading && j.Status != StatusSuccess {
			t.Errorf("unexpected status %q", j.Status)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List() returned %d jobs, want 4", len(all))
	}

	none, err := store.ListByStatus(ctx)
	if err != nil || len(none) != 0 {
		t.Errorf("ListByStatus() with no statuses = %v, %v", none, err)
	}
}

func TestStore_ProgressAndTerminalStates(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	store := NewStore(tdb.Conn)
	ctx := context.Background()

	if _, err := store.Create(ctx, &Job{GID: "g", UploadPath: "/x", Status: StatusUploading}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.UpdateUploadProgress(ctx, "g", "42%", 1000); err != nil {
		t.Fatalf("UpdateUploadProgress() error = %v", err)
	}
	job, _ := store.GetByGID(ctx, "g")
	if job.Progress != "42%" || job.Speed != 1000 {
		t.Errorf("progress = %q speed = %d", job.Progress, job.Speed)
	}

	if err := store.MarkSuccess(ctx, "g"); err != nil {
		t.Fatalf("MarkSuccess() error = %v", err)
	}
	job, _ = store.GetByGID(ctx, "g")
	if job.Status != StatusSuccess || job.Progress != "100%" || job.Speed != 0 {
		t.Errorf("after success: %+v", job)
	}

	if err := store.MarkFailed(ctx, "g", "disk full"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	job, _ = store.GetByGID(ctx, "g")
	if job.Status != StatusFailed || job.ErrorMessage != "disk full" {
		t.Errorf("after failure: %+v", job)
	}
}
