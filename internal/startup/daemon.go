package startup

import (
	"context"

	"github.com/rs/zerolog"
)

// VersionGetter is implemented by the aria2 client.
type VersionGetter interface {
	GetVersion(ctx context.Context) (string, error)
}

// WaitForDaemon checks that the download daemon answers, retrying while it is
// unreachable. The server starts either way; the result is only logged.
func WaitForDaemon(ctx context.Context, daemon VersionGetter, cfg RetryConfig, logger zerolog.Logger) (string, error) {
	var version string
	err := WithRetry(ctx, "aria2 connect", cfg, logger, func(ctx context.Context) error {
		v, err := daemon.GetVersion(ctx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("download daemon is not reachable, offline downloads will fail until it is")
		return "", err
	}
	logger.Info().Str("version", version).Msg("connected to download daemon")
	return version, nil
}
