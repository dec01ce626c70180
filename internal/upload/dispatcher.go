package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull  = errors.New("upload queue is full")
	ErrNotRunning = errors.New("upload dispatcher is not running")
)

// Config configures the dispatcher.
type Config struct {
	Workers   int
	QueueSize int
	// ProgressInterval throttles tracker progress callbacks per item.
	ProgressInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          2,
		QueueSize:        256,
		ProgressInterval: time.Second,
	}
}

// Dispatcher runs queued uploads on a fixed pool of workers.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	tracker Tracker
	logger  zerolog.Logger

	queue   chan Item
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a stopped dispatcher.
func NewDispatcher(cfg Config, sink Sink, tracker Tracker, logger zerolog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = def.ProgressInterval
	}
	return &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		tracker: tracker,
		logger:  logger.With().Str("component", "upload").Logger(),
		queue:   make(chan Item, cfg.QueueSize),
	}
}

// SetTracker replaces the lifecycle observer. Call before Start.
func (d *Dispatcher) SetTracker(t Tracker) {
	d.tracker = t
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.running = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Int("queueSize", d.cfg.QueueSize).
		Str("sink", d.sink.Name()).
		Msg("upload dispatcher started")
}

// Stop cancels in-flight uploads and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info().Msg("upload dispatcher stopped")
}

// Enqueue hands an item to the workers without waiting for it to run.
func (d *Dispatcher) Enqueue(item Item) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return ErrNotRunning
	}

	select {
	case d.queue <- item:
		d.logger.Debug().
			Str("id", item.ID).
			Str("gid", item.GID).
			Str("local", item.LocalPath).
			Str("remote", item.RemoteName()).
			Msg("upload queued")
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued items not yet picked up.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) worker(ctx context.Context, n int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-d.queue:
			d.run(ctx, item, n)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, item Item, worker int) {
	log := d.logger.With().
		Int("worker", worker).
		Str("id", item.ID).
		Str("gid", item.GID).
		Str("remote", item.RemoteName()).
		Logger()

	if d.tracker != nil {
		d.tracker.UploadStarted(item)
	}

	start := time.Now()
	var lastReport time.Time
	progress := func(sent, total int64) {
		if d.tracker == nil {
			return
		}
		now := time.Now()
		if sent < total && now.Sub(lastReport) < d.cfg.ProgressInterval {
			return
		}
		lastReport = now
		var speed int64
		if elapsed := now.Sub(start).Seconds(); elapsed > 0 {
			speed = int64(float64(sent) / elapsed)
		}
		d.tracker.UploadProgress(item, sent, total, speed)
	}

	err := d.sink.Upload(ctx, item, progress)
	if err != nil {
		err = fmt.Errorf("upload %s: %w", item.LocalPath, err)
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("upload failed")
	} else {
		log.Info().Dur("elapsed", time.Since(start)).Msg("upload finished")
	}

	if d.tracker != nil {
		d.tracker.UploadFinished(item, err)
	}
}
