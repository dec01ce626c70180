package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/api"
	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/database"
	"github.com/driveindex/driveindex/internal/scheduler"
	"github.com/driveindex/driveindex/internal/upload"
	"github.com/driveindex/driveindex/internal/websocket"
)

const (
	recentLogEntries = 1000
	shutdownTimeout  = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and upload workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadRuntime(recentLogEntries)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting driveindex")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)
	if recent := log.Recent(); recent != nil {
		recent.SetPublisher(hub)
	}

	sched, err := scheduler.New(log.WithComponent("scheduler"))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	sink, err := newSink(ctx, cfg.Upload)
	if err != nil {
		return err
	}
	log.Info().Str("sink", sink.Name()).Msg("upload sink ready")

	server, err := api.NewServer(ctx, db.Conn(), hub, sched, sink, log, cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown error")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx, cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
	return nil
}

func newSink(ctx context.Context, cfg config.UploadConfig) (upload.Sink, error) {
	switch cfg.Sink {
	case "s3":
		sink, err := upload.NewS3Sink(ctx, upload.S3Config{
			Bucket:  cfg.S3Bucket,
			Region:  cfg.S3Region,
			Profile: cfg.S3Profile,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 sink: %w", err)
		}
		return sink, nil
	default:
		sink, err := upload.NewLocalSink(cfg.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("create local sink: %w", err)
		}
		return sink, nil
	}
}
