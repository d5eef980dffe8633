package serverapp

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DianeXD/BetterQuesting/internal/quest"
)

// WatchContent reloads the quest content file whenever it changes, carrying
// persisted progress over to the freshly built database. Blocks until the
// context is done.
func (a *App) WatchContent(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors typically rename-over the file, which
	// drops a watch placed on the file itself.
	dir := filepath.Dir(a.cfg.Content.Path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(a.cfg.Content.Path)

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Editors fire bursts of events for one save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, a.reloadContent)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Printf("warn: content watcher: %v", err)
		}
	}
}

func (a *App) reloadContent() {
	db, lines, err := quest.LoadContent(a.cfg.Content.Path, a.logger)
	if err != nil {
		a.logger.Printf("warn: reload content: %v", err)
		return
	}
	if err := a.saves.Load(db); err != nil {
		a.logger.Printf("warn: reload content: reapply progress: %v", err)
		return
	}
	a.Engine.Reload(db, lines)
	a.logger.Printf("content reloaded: %d quests, %d lines", db.Len(), len(lines))
}
