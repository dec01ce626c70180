package offline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveindex/driveindex/internal/aria2"
)

func TestReconcile_Ordering(t *testing.T) {
	stored := []*Job{
		{GID: "s-down", Name: "downloading.iso", Status: StatusDownloading},
		{GID: "s-up", Name: "uploading.iso", Status: StatusUploading, Progress: "40%", Speed: 2048},
		{GID: "s-fail", Name: "broken.iso", Status: StatusFailed},
		{GID: "s-done", Name: "done.iso", Status: StatusSuccess, Progress: "100%", Speed: 999},
		{GID: "s-paused", Name: "paused.iso", Status: StatusPaused},
	}
	active := []aria2.Status{
		{GID: "a1", TotalLength: "100", CompletedLength: "25", DownloadSpeed: "1024", Files: []aria2.File{{Path: "/dl/a1.bin"}}},
	}
	waiting := []aria2.Status{
		{GID: "w1", TotalLength: "0", Files: []aria2.File{{Path: "/dl/w1.bin"}}},
	}

	rows := Reconcile(stored, active, waiting)

	require.Len(t, rows, 5)
	gids := make([]string, len(rows))
	for i, r := range rows {
		gids[i] = r.GID
	}
	assert.Equal(t, []string{"s-up", "s-done", "a1", "w1", "s-fail"}, gids)

	assert.Equal(t, Row{Name: "uploading.iso", Action: ActionDisabled, GID: "s-up", Status: "uploading", Progress: "40%", Speed: "2.0 KiB/s"}, rows[0])
	assert.Equal(t, Row{Name: "done.iso", Action: ActionDisabled, GID: "s-done", Status: "success", Progress: "100%", Speed: "0"}, rows[1])
	assert.Equal(t, Row{Name: "a1.bin", Action: ActionPause, GID: "a1", Status: "downloading", Progress: "25%", Speed: "1.0 KiB/s"}, rows[2])
	assert.Equal(t, Row{Name: "w1.bin", Action: ActionUnpause, GID: "w1", Status: "waiting", Progress: "0%", Speed: "0"}, rows[3])
	assert.Equal(t, ActionDelete, rows[4].Action)
}

func TestReconcile_TorrentName(t *testing.T) {
	active := []aria2.Status{{
		GID:             "a1",
		TotalLength:     "10",
		CompletedLength: "10",
		BitTorrent:      &aria2.BitTorrent{Info: &aria2.TorrentInfo{Name: "Big.Torrent"}},
		Files:           []aria2.File{{Path: "/dl/Big.Torrent/part1.rar"}},
	}}

	rows := Reconcile(nil, active, nil)

	require.Len(t, rows, 1)
	assert.Equal(t, "Big.Torrent", rows[0].Name)
	assert.Equal(t, "100%", rows[0].Progress)
}

func TestReconcile_Empty(t *testing.T) {
	rows := Reconcile(nil, nil, nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
