package domain

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // the assumed zone must resolve on hosts without zoneinfo
)

// DefaultTimeZone is the zone dispatch timestamps are assumed to be in.
const DefaultTimeZone = "Europe/Berlin"

var (
	// ErrMalformedDocument is returned when a structured payload (XML, JSON)
	// does not have the expected shape. The payload must be discarded.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrUnknownSource is returned for payloads of an unsupported source kind.
	ErrUnknownSource = errors.New("unknown source kind")

	// ErrNoTimestamp is returned for archive file names without a timestamp.
	ErrNoTimestamp = errors.New("no timestamp in file name")
)

// Options carries the settings parsers and formatters depend on. It is built
// once from configuration and passed by value.
type Options struct {
	// TimeZone is the IANA zone naive dispatch times are interpreted in.
	TimeZone string
	// HomeTown is omitted from rendered addresses and spoken text.
	HomeTown string
	// PagerUseHostClock takes pager timestamps from the host clock instead
	// of the telegram.
	PagerUseHostClock bool
	// LocalZone is the host zone used for epoch conversion and archive
	// filenames. Nil means time.Local.
	LocalZone *time.Location
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{TimeZone: DefaultTimeZone}
}

// Location resolves TimeZone, falling back to DefaultTimeZone when empty.
func (o Options) Location() (*time.Location, error) {
	name := o.TimeZone
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Local returns the host zone.
func (o Options) Local() *time.Location {
	if o.LocalZone != nil {
		return o.LocalZone
	}
	return time.Local
}

// location resolves the assumed zone, or UTC for a name config.Load would reject.
func (o Options) location() *time.Location {
	loc, err := o.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}
