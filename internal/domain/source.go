package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// RawPayload is one unparsed notification as handed over by a transport.
type RawPayload struct {
	Kind SourceKind
	// Data is the payload; UTF-8 text for pager telegrams, bytes as received otherwise.
	Data []byte
	// Origin names the transport for logging, e.g. "serial", "udp", "imap".
	Origin     string
	ReceivedAt time.Time
	// At overrides the alarm time for pager telegrams (archive replay). Zero means unset.
	At time.Time
}

// Submitter accepts raw payloads from a transport.
type Submitter interface {
	Submit(ctx context.Context, raw RawPayload) error
}

// Parse routes a payload to the parser for its source kind.
func Parse(raw RawPayload, opts Options, logger *slog.Logger) (Alarm, error) {
	switch raw.Kind {
	case SourcePager:
		if !raw.At.IsZero() {
			return ParsePagerAt(string(raw.Data), raw.At, opts, logger), nil
		}
		return ParsePager(string(raw.Data), opts, logger), nil
	case SourceXML:
		return ParseXML(raw.Data, opts, logger)
	case SourceJSON:
		return ParseAlamos(raw.Data, opts, logger)
	default:
		return Alarm{}, fmt.Errorf("%w: %q", ErrUnknownSource, raw.Kind)
	}
}

const archiveTimeLayout = "2006-01-02-15-04-05"

var archiveTimeRe = regexp.MustCompile(`\d{4}-\d\d-\d\d-\d\d-\d\d-\d\d`)

// ArchiveFileName returns "<local YYYY-MM-DD-HH-MM-SS>.<ext>" for t.
func ArchiveFileName(t time.Time, kind SourceKind, opts Options) string {
	return t.In(opts.Local()).Format(archiveTimeLayout) + "." + kind.Ext()
}

// ArchiveFileTime parses the receive time back out of an archive file name,
// interpreting it in the host zone.
func ArchiveFileTime(path string, opts Options) (time.Time, error) {
	m := archiveTimeRe.FindString(filepath.Base(path))
	if m == "" {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNoTimestamp, path)
	}
	return time.ParseInLocation(archiveTimeLayout, m, opts.Local())
}

// ArchiveKind derives the source kind from an archive file extension.
func ArchiveKind(path string) (SourceKind, bool) {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case "dme":
		return SourcePager, true
	case "xml":
		return SourceXML, true
	case "json":
		return SourceJSON, true
	default:
		return "", false
	}
}
