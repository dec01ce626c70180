package tasks

import (
	"context"

	"github.com/driveindex/driveindex/internal/api/ratelimit"
	"github.com/driveindex/driveindex/internal/scheduler"
)

const LoginLimiterCleanupTaskID = "login-limiter-cleanup"

// RegisterLoginLimiterCleanupTask prunes expired login throttling state hourly.
func RegisterLoginLimiterCleanupTask(sched *scheduler.Scheduler, limiter *ratelimit.AuthLimiter) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          LoginLimiterCleanupTaskID,
		Name:        "Login Limiter Cleanup",
		Description: "Drops expired login rate limit and lockout entries",
		Cron:        "0 * * * *",
		Func: func(context.Context) error {
			limiter.Cleanup()
			return nil
		},
	})
}
