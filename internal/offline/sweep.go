package offline

import (
	"context"
	"errors"

	"github.com/driveindex/driveindex/internal/aria2"
)

const stoppedLimit = 1000

var stoppedKeys = []string{aria2.KeyGID, aria2.KeyStatus, aria2.KeyErrorCode, aria2.KeyErrorMessage}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// Sweep compares stored downloading/paused jobs with the daemon's stopped
// list. Errored or removed jobs become failed; completed ones are fanned out
// to the uploader in case the completion callback never arrived.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	daemon, err := s.getDaemon()
	if err != nil {
		return res, err
	}

	jobs, err := s.store.ListByStatus(ctx, StatusDownloading, StatusPaused)
	if err != nil {
		return res, err
	}
	if len(jobs) == 0 {
		return res, nil
	}

	stopped, err := daemon.TellStopped(ctx, 0, stoppedLimit, stoppedKeys...)
	if err != nil {
		return res, err
	}

	byGID := make(map[string]aria2.Status, len(stopped))
	for _, st := range stopped {
		byGID[st.GID] = st
	}

	for _, job := range jobs {
		st, ok := byGID[job.GID]
		if !ok {
			continue
		}

		switch st.Status {
		case "error":
			msg := st.ErrorMessage
			if msg == "" {
				msg = "download failed (aria2 error " + st.ErrorCode + ")"
			}
			if err := s.store.MarkFailed(ctx, job.GID, msg); err != nil {
				return res, err
			}
			res.Failed++
			s.logger.Warn().Str("gid", job.GID).Str("error", msg).Msg("offline download failed")
			s.broadcast("offline:failed", map[string]string{"gid": job.GID, "error": msg})

		case "removed":
			if err := s.store.MarkFailed(ctx, job.GID, "removed from daemon"); err != nil {
				return res, err
			}
			res.Failed++
			s.broadcast("offline:failed", map[string]string{"gid": job.GID, "error": "removed from daemon"})

		case "complete":
			files, err := s.files(ctx, job.GID)
			if err != nil {
				s.logger.Warn().Err(err).Str("gid", job.GID).Msg("failed to list files of completed download")
				continue
			}
			_, err = s.fanOut(ctx, job, files)
			if errors.Is(err, errAlreadyClaimed) {
				continue
			}
			if err != nil {
				s.logger.Warn().Err(err).Str("gid", job.GID).Msg("failed to queue uploads")
				continue
			}
			res.Completed++
		}
	}

	if res.Failed > 0 || res.Completed > 0 {
		s.logger.Info().Int("failed", res.Failed).Int("completed", res.Completed).Msg("offline sweep finished")
	}
	return res, nil
}
