package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch re-renders a job whenever its description file is written,
// created or renamed into place, until ctx is cancelled. Directories are
// watched rather than files because editors often replace files on save.
// Events arriving within debounce of each other are coalesced.
func Watch(ctx context.Context, cfg Config, jobs []Job, debounce time.Duration, onResult func(Result)) error {
	cfg.defaults(jobs)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("batch: watch: %w", err)
	}
	defer watcher.Close()

	byPath := make(map[string]int, len(jobs))
	dirs := make(map[string]bool)
	for i, j := range jobs {
		abs, err := filepath.Abs(j.Input)
		if err != nil {
			return fmt.Errorf("batch: watch %s: %w", j.Input, err)
		}
		byPath[abs] = i
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("batch: watch %s: %w", d, err)
		}
	}
	cfg.Logger.Info("watching", "robots", len(jobs), "dirs", len(dirs))

	pending := make(map[int]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			idx, ok := byPath[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			pending[idx] = true
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.Logger.Warn("watch error", "err", err)
		case <-timer.C:
			for idx := range pending {
				onResult(processJob(cfg, jobs[idx]))
			}
			clear(pending)
		}
	}
}
