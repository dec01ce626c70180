package offline

import (
	"github.com/dustin/go-humanize"

	"github.com/driveindex/driveindex/internal/aria2"
)

// Keys requested for the listing. Waiting jobs have no speed worth showing.
var (
	activeKeys = []string{
		aria2.KeyGID, aria2.KeyTotalLength, aria2.KeyCompletedLength,
		aria2.KeyDownloadSpeed, aria2.KeyBitTorrent, aria2.KeyFiles,
	}
	waitingKeys = []string{
		aria2.KeyGID, aria2.KeyTotalLength, aria2.KeyCompletedLength,
		aria2.KeyBitTorrent, aria2.KeyFiles,
	}
)

// waitingLimit bounds the tellWaiting page used for the listing.
const waitingLimit = 999

// Reconcile merges stored jobs with live daemon snapshots into one listing:
// stored upload-phase jobs, then active daemon jobs, then waiting daemon
// jobs, then stored failed jobs. Stored downloading/paused rows are skipped
// because the daemon snapshots already describe them.
func Reconcile(stored []*Job, active, waiting []aria2.Status) []Row {
	rows := make([]Row, 0, len(stored)+len(active)+len(waiting))

	var failed []Row
	for _, job := range stored {
		switch job.Status {
		case StatusUploading:
			rows = append(rows, storedRow(job, formatSpeed(job.Speed)))
		case StatusSuccess:
			rows = append(rows, storedRow(job, "0"))
		case StatusFailed:
			row := storedRow(job, "0")
			row.Action = ActionDelete
			failed = append(failed, row)
		}
	}

	for _, st := range active {
		rows = append(rows, Row{
			Name:     st.DisplayName(),
			Action:   ActionPause,
			GID:      st.GID,
			Status:   string(StatusDownloading),
			Progress: st.Progress(),
			Speed:    formatSpeed(st.Speed()),
		})
	}

	for _, st := range waiting {
		rows = append(rows, Row{
			Name:     st.DisplayName(),
			Action:   ActionUnpause,
			GID:      st.GID,
			Status:   "waiting",
			Progress: st.Progress(),
			Speed:    "0",
		})
	}

	return append(rows, failed...)
}

func storedRow(job *Job, speed string) Row {
	progress := job.Progress
	if progress == "" {
		progress = "0%"
	}
	return Row{
		Name:     job.Name,
		Action:   ActionDisabled,
		GID:      job.GID,
		Status:   string(job.Status),
		Progress: progress,
		Speed:    speed,
	}
}

func formatSpeed(bytesPerSec int64) string {
	if bytesPerSec <= 0 {
		return "0"
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}
