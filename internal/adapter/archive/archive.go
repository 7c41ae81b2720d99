// Package archive keeps every received payload as a flat file and rebuilds
// the incident history from it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// DefaultHistorySize is the number of incidents shown on the idle screen.
const DefaultHistorySize = 5

// Store reads and writes the archive directory. Files are named
// "<YYYY-MM-DD-HH-MM-SS>[-N].<dme|xml|json>" in the host zone.
type Store struct {
	dir    string
	opts   domain.Options
	logger *slog.Logger
}

// NewStore creates a Store for dir. The directory must exist.
func NewStore(dir string, opts domain.Options, logger *slog.Logger) *Store {
	return &Store{dir: dir, opts: opts, logger: logger}
}

// Load implements the pipeline sink: it archives the payload of every update.
// The file time is the parsed alarm time, falling back to the receive time.
func (s *Store) Load(_ context.Context, update domain.Update) error {
	t := update.Alarm.Time
	if t.IsZero() {
		t = update.Payload.ReceivedAt
	}
	if t.IsZero() {
		t = domain.Now()
	}
	_, err := s.Save(update.Payload.Kind, update.Payload.Data, t)
	return err
}

// Save writes data for kind under the file name derived from t and returns its path.
// An existing file is never overwritten: a second payload within the same second
// gets a "-1", "-2", ... suffix before the extension.
func (s *Store) Save(kind domain.SourceKind, data []byte, t time.Time) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if kind.Ext() == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownSource, kind)
	}

	name := domain.ArchiveFileName(t, kind, s.opts)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i <= maxSameSecond; i++ {
		path := filepath.Join(s.dir, name)
		if i > 0 {
			path = filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
		}
		err := writeExclusive(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write archive file: %w", err)
		}
		s.logger.Debug("payload archived", "path", path, "source", kind)
		return path, nil
	}
	return "", fmt.Errorf("write archive file: more than %d payloads at %s", maxSameSecond, name)
}

// maxSameSecond bounds the suffixes tried for one archive time.
const maxSameSecond = 100

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reconstructs the alarm stored at path. The time in the file name
// replaces the pager telegram time and fills in missing times of other kinds.
func (s *Store) LoadFile(path string) (domain.Alarm, error) {
	kind, ok := domain.ArchiveKind(path)
	if !ok {
		return domain.Alarm{}, fmt.Errorf("%w: %s", domain.ErrUnknownSource, filepath.Base(path))
	}
	fileTime, err := domain.ArchiveFileTime(path, s.opts)
	if err != nil {
		return domain.Alarm{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("read archive file: %w", err)
	}

	raw := domain.RawPayload{Kind: kind, Data: data, Origin: "archive", ReceivedAt: fileTime}
	if kind == domain.SourcePager {
		raw.At = fileTime
	}
	alarm, err := domain.Parse(raw, s.opts, s.logger)
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if alarm.Time.IsZero() {
		alarm.Time = fileTime
	}
	return alarm, nil
}

// History returns up to limit incidents, newest first. Unreadable files and
// telegrams that did not match the pager grammar are skipped; consecutive
// files describing the same incident are merged.
func (s *Store) History(limit int) ([]domain.Alarm, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := domain.ArchiveKind(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var history []domain.Alarm
	for _, name := range names {
		alarm, err := s.LoadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping archive file", "file", name, "error", err)
			continue
		}
		if alarm.FallbackText != "" {
			continue
		}

		if n := len(history); n > 0 && history[n-1].Matches(&alarm) {
			history[n-1].Merge(&alarm, s.logger)
			continue
		}
		if len(history) == limit {
			break
		}
		history = append(history, alarm)
	}
	return history, nil
}
