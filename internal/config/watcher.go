package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Editors save in bursts (truncate, write, chmod, or write-and-rename).
const reloadDelay = 200 * time.Millisecond

// Watcher reloads the configuration file whenever it changes on disk.
type Watcher struct {
	path     string
	onChange func(*types.Config)
	delay    time.Duration
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
}

// NewWatcher watches the directory holding path, since editors often
// replace the file instead of writing it in place.
func NewWatcher(path string, onChange func(*types.Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		delay:    reloadDelay,
		watcher:  fsw,
		log:      logger.With("config"),
	}, nil
}

// Run delivers reloaded configurations until ctx is cancelled. A file that
// fails to parse is reported and the running configuration is kept.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Config watcher error")

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := load(w.path, false)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("Ignoring invalid config change")
		return
	}
	w.log.Info().Str("path", w.path).Msg("Config file changed, applying")
	w.onChange(cfg)
}
