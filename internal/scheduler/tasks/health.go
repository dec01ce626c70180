package tasks

import (
	"context"

	"github.com/driveindex/driveindex/internal/health"
	"github.com/driveindex/driveindex/internal/scheduler"
)

const HealthCheckTaskID = "health-check"

// RegisterHealthCheckTask checks the daemon and upload storage every two
// minutes. Failures are recorded on the health service, not the task.
func RegisterHealthCheckTask(sched *scheduler.Scheduler, svc *health.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HealthCheckTaskID,
		Name:        "Health Check",
		Description: "Checks that the download daemon and upload storage are reachable",
		Cron:        "*/2 * * * *",
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			svc.CheckAll(ctx)
			return nil
		},
	})
}
