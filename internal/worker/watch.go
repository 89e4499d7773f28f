package worker

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/timmy/zip2text/internal/logger"
)

// WatchQueue signals on the returned channel whenever an entry is created in
// or renamed into dir. Signals are coalesced; the channel never blocks the
// watcher. The watcher stops when ctx is done.
func WatchQueue(ctx context.Context, dir string) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create queue watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.FromContext(ctx).WithError(err).Warn("Queue watcher error")
			}
		}
	}()

	logger.CtxInfo(ctx, "Watching %s for new jobs", dir)
	return wake, nil
}
