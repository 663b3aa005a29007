package modelstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher invokes a callback whenever the artifact file is replaced, so the
// serving process picks up newly trained models without a restart.
//
// It watches the artifact's directory rather than the file: atomic saves
// swap the file by rename, which would silently drop a watch held on the
// file itself.
type Watcher struct {
	path     string
	logger   zerolog.Logger
	onChange func()
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher for the artifact at path. onChange runs on
// the watcher goroutine; keep it fast or hand off.
func NewWatcher(path string, logger zerolog.Logger, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch artifact directory: %w", err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		logger:   logger,
		onChange: onChange,
		fsw:      fsw,
	}, nil
}

// Run blocks, dispatching artifact changes until the context is canceled or
// the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Info().Str("path", w.path).Str("op", event.Op.String()).Msg("model artifact changed")
			w.onChange()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("artifact watcher error")
		}
	}
}

// Close stops the watcher. Run returns once pending events drain.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
