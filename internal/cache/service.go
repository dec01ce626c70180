package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/driveindex/driveindex/internal/scheduler"
)

const (
	// QueueRefreshKey is the setting that defers refreshes to the scheduler.
	QueueRefreshKey = "queue_refresh"

	refreshDelay = 5 * time.Second
)

// RefreshFunc rebuilds state after the caches were cleared.
type RefreshFunc func(ctx context.Context) error

// Flags reads boolean settings.
type Flags interface {
	Bool(ctx context.Context, key string) bool
}

// Deferrer runs a function once after a delay.
type Deferrer interface {
	RunOnce(name string, delay time.Duration, fn scheduler.TaskFunc) error
}

// Service clears the registered caches and runs the refreshers.
type Service struct {
	caches     []*Cache
	refreshers []RefreshFunc
	flags      Flags
	deferrer   Deferrer
	logger     zerolog.Logger
}

func NewService(flags Flags, deferrer Deferrer, logger zerolog.Logger) *Service {
	return &Service{
		flags:    flags,
		deferrer: deferrer,
		logger:   logger.With().Str("component", "cache").Logger(),
	}
}

// Register adds a cache to be emptied by Clear.
func (s *Service) Register(c *Cache) {
	s.caches = append(s.caches, c)
}

// OnRefresh adds a function run by Refresh after clearing.
func (s *Service) OnRefresh(fn RefreshFunc) {
	s.refreshers = append(s.refreshers, fn)
}

// Clear empties every registered cache and returns the number of entries dropped.
func (s *Service) Clear() int {
	total := 0
	for _, c := range s.caches {
		total += c.Clear()
	}
	s.logger.Info().Int("entries", total).Msg("cache cleared")
	return total
}

// Refresh clears the caches and runs the refreshers. When the queue_refresh
// setting is on the work is deferred to the scheduler and queued is true.
func (s *Service) Refresh(ctx context.Context) (queued bool, err error) {
	if s.flags != nil && s.deferrer != nil && s.flags.Bool(ctx, QueueRefreshKey) {
		if err := s.deferrer.RunOnce("cache-refresh", refreshDelay, s.refresh); err != nil {
			return false, err
		}
		s.logger.Info().Dur("delay", refreshDelay).Msg("cache refresh queued")
		return true, nil
	}
	return false, s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	s.Clear()
	var errs []error
	for _, fn := range s.refreshers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn().Err(err).Msg("cache refresh finished with errors")
		return err
	}
	s.logger.Info().Int("refreshers", len(s.refreshers)).Msg("cache refreshed")
	return nil
}
