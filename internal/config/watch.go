package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// DefaultWatchDebounce coalesces bursts of writes from editors.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes.
//
// The parent directory is watched rather than the file, so atomic
// rename-over-write saves are seen. Reloads that fail to parse are logged
// and the callback is not invoked.
type Watcher struct {
	log      *slog.Logger
	path     string
	debounce time.Duration
	onChange func([]mcp.ServerConfig)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for path. A non-positive debounce selects
// DefaultWatchDebounce.
func NewWatcher(
	log *slog.Logger,
	path string,
	debounce time.Duration,
	onChange func([]mcp.ServerConfig),
) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	return &Watcher{
		log:      log.With("component", "config_watcher", "path", path),
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
	}
}

// Start begins watching. Call Stop to release the underlying watcher.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()

		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.run(ctx, fsw, done)

	w.log.Info("Watching config file")

	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer fsw.Close()

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.log.Debug("Config file changed", "op", event.Op.String())

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}

				w.reload()
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}

			w.log.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	configs, err := LoadFile(w.path)
	if err != nil {
		w.log.Warn("Ignoring invalid config change", "error", err)

		return
	}

	w.log.Info("Config reloaded", "servers", len(configs))
	w.onChange(configs)
}
