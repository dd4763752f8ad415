// Package watch re-runs generation when spec files change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"resforge/internal/dsl"
)

// Watcher watches a spec directory tree and calls OnChange once per burst
// of events on matching files.
type Watcher struct {
	Root     string
	Pattern  string
	Debounce time.Duration
	// OnChange receives the changed paths relative to Root, sorted by first
	// appearance. An error is logged; watching continues.
	OnChange func(ctx context.Context, changed []string) error
	Logger   *zap.Logger
}

func New(root, pattern string, debounce time.Duration, onChange func(context.Context, []string) error, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{Root: root, Pattern: pattern, Debounce: debounce, OnChange: onChange, Logger: logger}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.Root); err != nil {
		return err
	}
	w.Logger.Info("watching specs", zap.String("root", w.Root), zap.String("pattern", w.Pattern))

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var pending []string
	seen := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", zap.Error(err))
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := w.addTree(fw, ev.Name); err != nil {
						w.Logger.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			rel, err := filepath.Rel(w.Root, ev.Name)
			if err != nil || !dsl.Matches(w.Pattern, rel) {
				continue
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !seen[rel] {
				seen[rel] = true
				pending = append(pending, rel)
			}
			timer.Reset(debounce)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := pending
			pending, seen = nil, map[string]bool{}
			w.Logger.Info("specs changed", zap.Strings("paths", changed))
			if err := w.OnChange(ctx, changed); err != nil {
				w.Logger.Error("regeneration failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
