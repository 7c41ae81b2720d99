// Package spool ingests payloads dropped into a directory, for example by an
// FTP upload or a mail filter on the same host.
package spool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// Watcher submits every file created in dir and removes it afterwards. The
// extension selects the source kind: .dme (pager text), .xml or .json.
// Uploaders should write to a temporary name and rename into place.
type Watcher struct {
	dir       string
	submitter domain.Submitter
	logger    *slog.Logger
}

// NewWatcher creates a spool watcher for dir.
func NewWatcher(dir string, submitter domain.Submitter, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, submitter: submitter, logger: logger}
}

// Run ingests the files already present, then watches for new ones until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching spool directory", "dir", w.dir)

	if err := w.ingestExisting(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.ingest(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("spool watcher error", "error", err)
		}
	}
}

func (w *Watcher) ingestExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read spool dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.ingest(ctx, filepath.Join(w.dir, name))
	}
	return nil
}

// ingest submits the file at path and removes it. Files with unknown
// extensions are left alone.
func (w *Watcher) ingest(ctx context.Context, path string) {
	kind, ok := domain.ArchiveKind(path)
	if !ok {
		w.logger.Debug("ignoring spool file", "file", filepath.Base(path))
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("read spool file", "file", path, "error", err)
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Error("remove spool file", "file", path, "error", err)
	}

	w.logger.Info("spool file received", "file", filepath.Base(path), "source", kind, "bytes", len(data))
	raw := domain.RawPayload{Kind: kind, Data: data, Origin: "spool"}
	if err := w.submitter.Submit(ctx, raw); err != nil && ctx.Err() == nil {
		w.logger.Error("submit spool file", "file", path, "error", err)
	}
}
