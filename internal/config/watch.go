package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Watch reloads the config file on change and invokes onReload with the
// freshly validated configuration. Invalid edits are logged and skipped;
// the previous configuration stays in effect. Watch blocks until ctx is
// cancelled.
//
// Only tuning knobs read per-request (rate limit, rerank enable, context
// budget) take effect on reload; connection settings require a restart.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log := logger.WithComponent("config")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.WithError(err).WithField("path", path).
					Warn("config reload rejected, keeping previous settings")
				continue
			}
			log.WithField("path", path).Info("config reloaded")
			onReload(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}
