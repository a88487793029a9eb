package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchDirectory loads the directory, hands it to onUpdate and then polls the
// file's mtime, reloading on change. Invalid edits are logged and skipped so
// the last good directory stays in effect.
func WatchDirectory(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*DirectoryConfig) error) error {
	if path == "" {
		path = "configs/directory.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg, err := LoadDirectory(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		if err := onUpdate(cfg); err != nil {
			return err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := LoadDirectory(path)
				if err != nil {
					logger.Error().Err(err).Str("path", path).Msg("directory reload rejected")
					continue
				}
				if onUpdate != nil {
					if err := onUpdate(cfg); err != nil {
						logger.Error().Err(err).Msg("apply directory")
						continue
					}
				}
				logger.Info().Str("directory", cfg.String()).Msg("directory reloaded")
			}
		}
	}()

	return nil
}
