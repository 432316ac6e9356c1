package server

import (
	"context"

	"github.com/teilomillet/parley/config"
	"go.uber.org/zap"
)

// WatchLogLevel applies logging.level from every reloaded config until ctx
// is done or the watcher closes. Other settings only take effect on restart.
func WatchLogLevel(ctx context.Context, w config.Watcher, level zap.AtomicLevel, logger *zap.Logger) error {
	updates := w.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return w.Close()
		case cfg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
				logger.Warn("Ignoring invalid log level", zap.String("level", cfg.Logging.Level), zap.Error(err))
				continue
			}
			logger.Info("Configuration reloaded",
				zap.String("log_level", level.Level().String()),
				zap.String("note", "settings other than logging.level apply after restart"),
			)
		}
	}
}
