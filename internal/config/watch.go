package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/inkwell-ai/inkwell/internal/logging"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

// Watch reloads configuration whenever a config file in directory or the
// global config directory changes, and calls apply with the fresh config.
// It returns a stop function. Watching is best-effort: if no watcher can be
// established the returned stop is a no-op.
func Watch(ctx context.Context, directory string, apply func(*types.Config)) (stop func()) {
	log := logging.For("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("config watch unavailable")
		return func() {}
	}

	for _, dir := range []string{GetPaths().Config, directory} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err == nil {
			if err := watcher.Add(dir); err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("cannot watch config dir")
			}
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isConfigFile(ev.Name) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(directory)
				if err != nil {
					log.Warn().Err(err).Str("file", ev.Name).Msg("config reload failed")
					continue
				}
				log.Info().Str("file", ev.Name).Msg("config reloaded")
				apply(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watch error")
			}
		}
	}()

	return func() { watcher.Close() }
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return base == "inkwell.json" || base == "inkwell.jsonc"
}
