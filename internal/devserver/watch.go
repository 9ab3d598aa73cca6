// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package devserver

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/fsnotify/fsnotify"

	"go.astrophena.name/stitch/internal/changebus"
)

// watchRecursive adds dir and its subdirectories to w, except for the
// output directory.
func (s *server) watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && within(s.c.Dst, path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func (s *server) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	logger.Info(ctx, "started watching for new changes")

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if s.handleEvent(ev, time.Now()) {
				logger.Info(ctx, "detected change, scheduling build",
					slog.String("name", ev.Name),
					slog.Any("op", ev.Op),
				)
			}
			// New directories need watches of their own. This happens after
			// publishing, so the stat never delays the event.
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := s.watchRecursive(w, ev.Name); err != nil {
						logger.Error(ctx, "failed to watch new directory", slog.String("dir", ev.Name), slog.Any("err", err))
					}
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error(ctx, "file watcher error", slog.Any("err", err))
		case <-ctx.Done():
			return
		}
	}
}

// handleEvent filters, debounces and classifies a raw watcher event and
// publishes it for the rebuild loop. It reports whether the event was
// accepted.
func (s *server) handleEvent(ev fsnotify.Event, now time.Time) bool {
	if !shouldRebuild(ev.Name, ev.Op) {
		return false
	}
	if !s.debounce.allow(now) {
		return false
	}
	s.setState(stateDebouncing)
	s.changes.Publish(changebus.Event{Path: ev.Name, Kind: classify(ev)})
	return true
}

// debouncer accepts an event only if more than d passed since the last
// accepted one. The interval is global across all paths.
type debouncer struct {
	d    time.Duration
	mu   sync.Mutex
	last time.Time
}

func (d *debouncer) allow(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.last.IsZero() && now.Sub(d.last) <= d.d {
		return false
	}
	d.last = now
	return true
}

func classify(ev fsnotify.Event) changebus.Kind {
	if strings.EqualFold(filepath.Ext(ev.Name), ".css") {
		return changebus.CSSChange
	}
	switch {
	case ev.Has(fsnotify.Create):
		return changebus.Create
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A renamed file is gone under its old name. The new name, if it
		// is still watched, gets a create event of its own.
		return changebus.Delete
	}
	return changebus.Modify
}

// Copied from
// https://github.com/brandur/modulir/blob/1ff912fdc45a79cb4d8d9f199d213ae9c3598cbd/watch.go#L201.
func shouldRebuild(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Mac OS' worst mistake.
	if base == ".DS_Store" {
		return false
	}

	// Vim creates this temporary file to see whether it can write into a target
	// directory. It screws up our watching algorithm, so ignore it.
	if base == "4913" {
		return false
	}

	// A special case, but ignore creates on files that look like Vim backups.
	if strings.HasSuffix(base, "~") {
		return false
	}

	// Chmod doesn't affect the output.
	return op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
}
