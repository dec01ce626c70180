package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const jobColumns = `id, gid, name, upload_path, client_id, status, progress, speed, error_message, created_at, updated_at`

// Store persists download jobs.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new job and returns it with its generated fields.
func (s *Store) Create(ctx context.Context, job *Job) (*Job, error) {
	if job.Status == "" {
		job.Status = StatusDownloading
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_downloads (gid, name, upload_path, client_id, status)
		VALUES (?, ?, ?, ?, ?)
	`, job.GID, job.Name, job.UploadPath, job.ClientID, job.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job %s: %w", job.GID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read job id: %w", err)
	}
	return s.getByID(ctx, id)
}

// GetByGID returns the job tracked under gid.
func (s *Store) GetByGID(ctx context.Context, gid string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM offline_downloads WHERE gid = ?`, gid)
	return scanJob(row)
}

// List returns all jobs, oldest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	return s.query(ctx, `SELECT `+jobColumns+` FROM offline_downloads ORDER BY id`)
}

// ListByStatus returns jobs in any of the given states, oldest first.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Job, error) {
	if len(statuses) == 0 {
		return []*Job{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return s.query(ctx, `SELECT `+jobColumns+` FROM offline_downloads WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
}

// UpdateStatus sets the status of the job tracked under gid.
func (s *Store) UpdateStatus(ctx context.Context, gid string, status Status) error {
	return s.exec(ctx, gid, `
		UPDATE offline_downloads SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE gid = ?
	`, status, gid)
}

// MarkFailed moves a job to failed and records why.
func (s *Store) MarkFailed(ctx context.Context, gid, message string) error {
	return s.exec(ctx, gid, `
		UPDATE offline_downloads
		SET status = ?, error_message = ?, speed = 0, updated_at = CURRENT_TIMESTAMP
		WHERE gid = ?
	`, StatusFailed, message, gid)
}

// UpdateUploadProgress caches upload progress for display.
func (s *Store) UpdateUploadProgress(ctx context.Context, gid, progress string, speed int64) error {
	return s.exec(ctx, gid, `
		UPDATE offline_downloads SET progress = ?, speed = ?, updated_at = CURRENT_TIMESTAMP WHERE gid = ?
	`, progress, speed, gid)
}

// MarkSuccess finishes a job's upload phase.
func (s *Store) MarkSuccess(ctx context.Context, gid string) error {
	return s.exec(ctx, gid, `
		UPDATE offline_downloads
		SET status = ?, progress = '100%', speed = 0, updated_at = CURRENT_TIMESTAMP
		WHERE gid = ?
	`, StatusSuccess, gid)
}

// BeginUpload moves a job that is still downloading or paused to next,
// resetting its cached progress. It reports false, with no error, when the
// job has already left the download phase, so only one completion path can
// claim it.
func (s *Store) BeginUpload(ctx context.Context, gid string, next Status) (bool, error) {
	progress := "0%"
	if next == StatusSuccess {
		progress = "100%"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE offline_downloads
		SET status = ?, progress = ?, speed = 0, updated_at = CURRENT_TIMESTAMP
		WHERE gid = ? AND status IN (?, ?)
	`, next, progress, gid, StatusDownloading, StatusPaused)
	if err != nil {
		return false, fmt.Errorf("failed to update job %s: %w", gid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update job %s: %w", gid, err)
	}
	return n > 0, nil
}

// Delete removes the job tracked under gid.
func (s *Store) Delete(ctx context.Context, gid string) error {
	return s.exec(ctx, gid, `DELETE FROM offline_downloads WHERE gid = ?`, gid)
}

func (s *Store) getByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM offline_downloads WHERE id = ?`, id)
	return scanJob(row)
}

func (s *Store) exec(ctx context.Context, gid, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", gid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", gid, err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.GID, &j.Name, &j.UploadPath, &j.ClientID,
		&j.Status, &j.Progress, &j.Speed, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &j, nil
}
