// Package tasks registers the background jobs with the scheduler.
package tasks

import (
	"context"

	"github.com/driveindex/driveindex/internal/offline"
	"github.com/driveindex/driveindex/internal/scheduler"
)

const OfflineSweepTaskID = "offline-sweep"

// RegisterOfflineSweepTask registers the sweep that marks errored downloads
// failed and picks up completions whose callback never arrived.
func RegisterOfflineSweepTask(sched *scheduler.Scheduler, service *offline.Service, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          OfflineSweepTaskID,
		Name:        "Offline Download Sweep",
		Description: "Marks errored downloads failed and uploads completed ones",
		Cron:        cron,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := service.Sweep(ctx)
			return err
		},
	})
}
