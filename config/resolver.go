package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bazelment/yoloswe/acprelay/projection"
)

// FileResolver serves projection configs from a YAML file and reloads it
// when the file changes. Turns snapshot their config when they begin, so a
// reload only affects later turns.
type FileResolver struct {
	current  *File
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	path     string
	debounce time.Duration
	reloads  int
	errors   int
	mu       sync.RWMutex
	running  bool
}

// NewFileResolver loads path and returns a resolver. Call Start to watch
// for changes.
func NewFileResolver(path string, logger *slog.Logger) (*FileResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &FileResolver{
		current:  f,
		logger:   logger,
		path:     path,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Resolve implements projection.ConfigResolver.
func (r *FileResolver) Resolve(sessionKey string) projection.Config {
	r.mu.RLock()
	f := r.current
	r.mu.RUnlock()
	return f.Resolve(sessionKey)
}

// Reload re-reads the file. On error the previous configuration stays.
func (r *FileResolver) Reload() error {
	f, err := Load(r.path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		return err
	}
	r.current = f
	r.reloads++
	return nil
}

// Reloads returns how many reloads succeeded and failed.
func (r *FileResolver) Reloads() (ok, failed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reloads, r.errors
}

// Start watches the file's directory so that editors that replace the
// file by rename are noticed too.
func (r *FileResolver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		r.mu.Unlock()
		return fmt.Errorf("watching %s: %w", r.path, err)
	}
	r.watcher = watcher
	r.running = true
	r.mu.Unlock()

	go r.run(ctx)
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (r *FileResolver) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
	if err := r.watcher.Close(); err != nil {
		r.logger.Warn("closing config watcher", "err", err)
	}
}

func (r *FileResolver) run(ctx context.Context) {
	defer close(r.doneCh)

	target := filepath.Clean(r.path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.After(r.debounce)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("config watcher error", "err", err)
		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				r.logger.Warn("config reload failed, keeping previous config", "path", r.path, "err", err)
				continue
			}
			r.logger.Info("config reloaded", "path", r.path)
		}
	}
}
