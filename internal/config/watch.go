package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Resolver turns the options read from a config file into a Config. The CLI
// uses it to lay its flags over the file before validation.
type Resolver func(Options) (Config, error)

// Watch re-reads the file at path each time its content changes, resolves
// it and passes the result to onChange. A nil resolve means Validate.
//
// The parent directory is watched rather than the file, so saves that
// replace the file by rename keep being seen. Files that fail to parse or
// resolve are logged and skipped. Watch returns when ctx is done.
func Watch(ctx context.Context, path string, resolve Resolver, onChange func(Config)) error {
	if resolve == nil {
		resolve = Validate
	}

	target := filepath.Clean(path)
	format, err := FormatOf(target)
	if err != nil {
		return &ConfigError{Reason: "watch", Err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", target, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", target, err)
	}

	last, _ := os.ReadFile(target)
	logger := slog.Default().With("path", target)
	logger.Debug("config: watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			data, err := os.ReadFile(target)
			if err != nil {
				logger.Warn("config: reading changed file", "err", err)
				continue
			}
			if bytes.Equal(data, last) {
				continue
			}

			opts, err := Parse(data, format)
			if err == nil {
				var cfg Config
				if cfg, err = resolve(opts); err == nil {
					last = data
					logger.Info("config: reloaded")
					onChange(cfg)
					continue
				}
			}
			logger.Error("config: reload failed, keeping previous config", "err", err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", "err", err)
		}
	}
}
