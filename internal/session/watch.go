package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch follows changes made to the token file by other spendlog processes
// (a `spendlog logout` in another terminal, say) and calls Sync for each one.
// It blocks until ctx is done.
//
// The parent directory is watched rather than the file itself because the
// store replaces the file by rename.
func (m *Manager) Watch(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("session.Watch: create dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session.Watch: new watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("session.Watch: watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			m.log.Debug("token file changed", zap.String("op", ev.Op.String()))
			m.Sync()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("token watcher", zap.Error(err))
		}
	}
}
