package offline

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/driveindex/driveindex/internal/aria2"
	"github.com/driveindex/driveindex/internal/upload"
)

// Daemon is the subset of the aria2 client the workflow needs.
type Daemon interface {
	AddURI(ctx context.Context, uri string) (string, error)
	TellActive(ctx context.Context, keys ...string) ([]aria2.Status, error)
	TellWaiting(ctx context.Context, offset, num int, keys ...string) ([]aria2.Status, error)
	TellStopped(ctx context.Context, offset, num int, keys ...string) ([]aria2.Status, error)
	GetFiles(ctx context.Context, gid string) ([]aria2.File, error)
	ForcePause(ctx context.Context, gid string) error
	Unpause(ctx context.Context, gid string) error
	ForceRemove(ctx context.Context, gid string) error
}

// Dispatcher accepts upload work items.
type Dispatcher interface {
	Enqueue(item upload.Item) error
}

// Broadcaster pushes job events to connected admin clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any)
}

// Service drives the offline-download workflow.
type Service struct {
	store      *Store
	dispatcher Dispatcher
	logger     zerolog.Logger

	mu            sync.RWMutex
	daemon        Daemon
	callbackToken string
	broadcaster   Broadcaster

	uploadsMu sync.Mutex
	uploads   map[string]*uploadState
}

type uploadState struct {
	remaining int
	failed    bool
}

// NewService creates the service. The daemon is attached with SetDaemon once
// its settings are known.
func NewService(store *Store, dispatcher Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "offline").Logger(),
		uploads:    make(map[string]*uploadState),
	}
}

// SetDaemon swaps the daemon client and the completion-callback secret.
// Called at startup and whenever the daemon settings change.
func (s *Service) SetDaemon(d Daemon, callbackToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daemon = d
	s.callbackToken = callbackToken
}

// SetBroadcaster enables job event pushes.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// SetDispatcher replaces the upload dispatcher.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

func (s *Service) getDaemon() (Daemon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.daemon == nil {
		return nil, ErrDaemonNotConfigured
	}
	return s.daemon, nil
}

func (s *Service) broadcast(msgType string, payload any) {
	s.mu.RLock()
	b := s.broadcaster
	s.mu.RUnlock()
	if b != nil {
		b.Broadcast(msgType, payload)
	}
}

// List builds the combined listing of stored and live jobs. Any daemon
// failure fails the whole listing.
func (s *Service) List(ctx context.Context) ([]Row, error) {
	daemon, err := s.getDaemon()
	if err != nil {
		return nil, err
	}

	stored, err := s.store.ListByStatus(ctx, StatusUploading, StatusSuccess, StatusFailed)
	if err != nil {
		return nil, err
	}

	active, err := daemon.TellActive(ctx, activeKeys...)
	if err != nil {
		return nil, err
	}

	waiting, err := daemon.TellWaiting(ctx, 0, waitingLimit, waitingKeys...)
	if err != nil {
		return nil, err
	}

	return Reconcile(stored, active, waiting), nil
}

// Jobs returns every stored job.
func (s *Service) Jobs(ctx context.Context) ([]*Job, error) {
	return s.store.List(ctx)
}

// Submit hands a URL to the daemon and records the new job. Nothing is
// stored when the daemon refuses it. Identical URLs are not de-duplicated.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Job, error) {
	input.URL = strings.TrimSpace(input.URL)
	input.Path = strings.TrimSpace(input.Path)

	if input.URL == "" {
		return nil, &ValidationError{Field: "url", Message: "is required"}
	}
	if input.Path == "" {
		return nil, &ValidationError{Field: "path", Message: "is required"}
	}

	daemon, err := s.getDaemon()
	if err != nil {
		return nil, err
	}

	gid, err := daemon.AddURI(ctx, input.URL)
	if err != nil {
		return nil, err
	}

	job, err := s.store.Create(ctx, &Job{
		GID:        gid,
		Name:       nameFromURL(input.URL),
		UploadPath: input.Path,
		ClientID:   input.ClientID,
		Status:     StatusDownloading,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("gid", gid).
		Str("name", job.Name).
		Str("uploadPath", job.UploadPath).
		Str("clientId", job.ClientID).
		Msg("offline download started")
	s.broadcast("offline:submitted", job)

	return job, nil
}

// Control applies pause, unpause or delete to a stored job. The daemon is
// asked first and the stored row only changes once the daemon agreed.
func (s *Service) Control(ctx context.Context, input ControlInput) error {
	if input.GID == "" {
		return &ValidationError{Field: "gid", Message: "is required"}
	}

	var (
		daemonCall func(context.Context, string) error
		commit     func(context.Context, string) error
	)

	daemon, err := s.getDaemon()
	if err != nil {
		return err
	}

	switch input.Action {
	case ActionPause:
		daemonCall = daemon.ForcePause
		commit = func(ctx context.Context, gid string) error {
			return s.store.UpdateStatus(ctx, gid, StatusPaused)
		}
	case ActionUnpause:
		daemonCall = daemon.Unpause
		commit = func(ctx context.Context, gid string) error {
			return s.store.UpdateStatus(ctx, gid, StatusDownloading)
		}
	case ActionDelete:
		daemonCall = daemon.ForceRemove
		commit = s.store.Delete
	default:
		return &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", input.Action)}
	}

	job, err := s.store.GetByGID(ctx, input.GID)
	if err != nil {
		return err
	}

	if err := daemonCall(ctx, job.GID); err != nil {
		// Failed and finished jobs are usually gone from the daemon already;
		// deleting them must still clear the row.
		if !(input.Action == ActionDelete && errors.Is(err, aria2.ErrNotFound)) {
			s.logger.Warn().Err(err).Str("gid", job.GID).Str("action", string(input.Action)).Msg("daemon refused action")
			return err
		}
	}

	if err := commit(ctx, job.GID); err != nil {
		return err
	}

	s.logger.Info().Str("gid", job.GID).Str("action", string(input.Action)).Msg("offline download updated")
	s.broadcast("offline:"+string(input.Action), map[string]string{"gid": job.GID})
	return nil
}

// Complete handles the daemon's completion callback: it fans the job's
// files out to the upload dispatcher, one work item per file, and returns
// how many items were queued.
func (s *Service) Complete(ctx context.Context, token, gid string) (int, error) {
	s.mu.RLock()
	secret := s.callbackToken
	s.mu.RUnlock()

	if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return 0, ErrUnauthorized
	}

	files, err := s.files(ctx, gid)
	if err != nil {
		return 0, err
	}

	job, err := s.store.GetByGID(ctx, gid)
	if errors.Is(err, ErrJobNotFound) {
		s.logger.Warn().Str("gid", gid).Msg("completion for a gid with no stored job")
		return 0, ErrGIDNotFound
	}
	if err != nil {
		return 0, err
	}

	n, err := s.fanOut(ctx, job, files)
	if errors.Is(err, errAlreadyClaimed) {
		// Repeated callbacks are acknowledged without uploading again.
		return 0, nil
	}
	return n, err
}

func (s *Service) files(ctx context.Context, gid string) ([]aria2.File, error) {
	daemon, err := s.getDaemon()
	if err != nil {
		return nil, err
	}
	files, err := daemon.GetFiles(ctx, gid)
	if err == nil {
		return files, nil
	}
	// Any answer from the daemon without a file list means it has nothing
	// for this gid. Only transport failures are reported as such.
	var de *aria2.DaemonError
	if errors.Is(err, aria2.ErrNotFound) || (errors.As(err, &de) && !de.Unreachable()) {
		s.logger.Debug().Err(err).Str("gid", gid).Msg("daemon has no files for gid")
		return nil, ErrGIDNotFound
	}
	return nil, err
}

// errAlreadyClaimed means another completion path already moved the job
// out of its download phase.
var errAlreadyClaimed = errors.New("job already left the download phase")

func (s *Service) fanOut(ctx context.Context, job *Job, files []aria2.File) (int, error) {
	items := s.uploadItems(job, files)

	if len(items) == 0 {
		claimed, err := s.store.BeginUpload(ctx, job.GID, StatusSuccess)
		if err != nil {
			return 0, err
		}
		if !claimed {
			return 0, errAlreadyClaimed
		}
		s.broadcast("offline:success", map[string]string{"gid": job.GID})
		return 0, nil
	}

	s.mu.RLock()
	dispatcher := s.dispatcher
	s.mu.RUnlock()

	s.uploadsMu.Lock()
	if _, busy := s.uploads[job.GID]; busy {
		s.uploadsMu.Unlock()
		s.logger.Debug().Str("gid", job.GID).Msg("uploads already in progress")
		return 0, errAlreadyClaimed
	}
	s.uploads[job.GID] = &uploadState{remaining: len(items)}
	s.uploadsMu.Unlock()

	release := func() {
		s.uploadsMu.Lock()
		delete(s.uploads, job.GID)
		s.uploadsMu.Unlock()
	}

	claimed, err := s.store.BeginUpload(ctx, job.GID, StatusUploading)
	if err != nil {
		release()
		return 0, err
	}
	if !claimed {
		release()
		s.logger.Debug().Str("gid", job.GID).Msg("download already past the download phase")
		return 0, errAlreadyClaimed
	}

	queued := 0
	var errs []error
	for _, item := range items {
		if err := dispatcher.Enqueue(item); err != nil {
			errs = append(errs, err)
			s.UploadFinished(item, err)
			continue
		}
		queued++
	}

	s.logger.Info().
		Str("gid", job.GID).
		Int("files", len(items)).
		Int("queued", queued).
		Msg("download complete, uploads queued")
	s.broadcast("offline:uploading", map[string]any{"gid": job.GID, "files": len(items)})

	return queued, errors.Join(errs...)
}

// UploadStarted implements upload.Tracker.
func (s *Service) UploadStarted(item upload.Item) {
	s.logger.Debug().Str("gid", item.GID).Str("local", item.LocalPath).Msg("upload started")
}

// UploadProgress implements upload.Tracker by caching progress on the job.
func (s *Service) UploadProgress(item upload.Item, sent, total, bytesPerSec int64) {
	progress := "0%"
	if total > 0 {
		progress = strconv.FormatInt(sent*100/total, 10) + "%"
	}
	if err := s.store.UpdateUploadProgress(context.Background(), item.GID, progress, bytesPerSec); err != nil {
		s.logger.Warn().Err(err).Str("gid", item.GID).Msg("failed to cache upload progress")
	}
}

// UploadFinished implements upload.Tracker. The job becomes success when its
// last item finishes cleanly, or failed as soon as one item fails.
func (s *Service) UploadFinished(item upload.Item, err error) {
	ctx := context.Background()

	s.uploadsMu.Lock()
	st, ok := s.uploads[item.GID]
	if !ok {
		s.uploadsMu.Unlock()
		return
	}
	st.remaining--
	firstFailure := err != nil && !st.failed
	if err != nil {
		st.failed = true
	}
	done := st.remaining <= 0
	failed := st.failed
	if done {
		delete(s.uploads, item.GID)
	}
	s.uploadsMu.Unlock()

	if firstFailure {
		if merr := s.store.MarkFailed(ctx, item.GID, err.Error()); merr != nil {
			s.logger.Warn().Err(merr).Str("gid", item.GID).Msg("failed to mark job failed")
		}
		s.broadcast("offline:failed", map[string]string{"gid": item.GID, "error": err.Error()})
	}

	if done && !failed {
		if merr := s.store.MarkSuccess(ctx, item.GID); merr != nil {
			s.logger.Warn().Err(merr).Str("gid", item.GID).Msg("failed to mark job uploaded")
			return
		}
		s.logger.Info().Str("gid", item.GID).Msg("all files uploaded")
		s.broadcast("offline:success", map[string]string{"gid": item.GID})
	}
}

// uploadItems builds one work item per downloaded file. Each item keeps its
// path relative to the download's common directory, so files that share a
// base name in different folders stay distinct under the upload path.
func (s *Service) uploadItems(job *Job, files []aria2.File) []upload.Item {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.Path == "" {
			s.logger.Warn().Str("gid", job.GID).Str("index", f.Index).Msg("skipping file without a local path")
			continue
		}
		paths = append(paths, filepath.Clean(f.Path))
	}
	if len(paths) == 0 {
		return nil
	}

	base := commonDir(paths)
	items := make([]upload.Item, 0, len(paths))
	for _, p := range paths {
		item := upload.NewItem(p, job.UploadPath, ChunkSize, job.ClientID, job.GID)
		if rel, err := filepath.Rel(base, p); err == nil {
			item.RelPath = filepath.ToSlash(rel)
		}
		items = append(items, item)
	}
	return items
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	base := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !within(base, p) {
			parent := filepath.Dir(base)
			if parent == base {
				return base
			}
			base = parent
		}
	}
	return base
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// nameFromURL returns the last path segment of a URL. Magnet links use
// their display-name parameter when present.
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	if u.Scheme == "magnet" {
		if dn := u.Query().Get("dn"); dn != "" {
			return dn
		}
		return raw
	}
	if u.Path == "" || u.Path == "/" {
		return u.Host
	}
	return path.Base(u.Path)
}
