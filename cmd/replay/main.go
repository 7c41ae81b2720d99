// Command replay rebuilds the incident history from an archive directory and
// prints it as a table.
//
// Usage:
//
//	go run ./cmd/replay --db /var/lib/alarm_db --count 10 --spoken
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/couchcryptid/alarm-display/internal/adapter/archive"
	"github.com/couchcryptid/alarm-display/internal/config"
	"github.com/couchcryptid/alarm-display/internal/domain"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	dbPath := flags.String("db", os.Getenv("DB_PATH"), "archive directory")
	count := flags.IntP("count", "n", archive.DefaultHistorySize, "number of incidents to show")
	spoken := flags.BoolP("spoken", "s", false, "print the spoken text of every incident")
	timeZone := flags.String("time-zone", domain.DefaultTimeZone, "zone dispatch timestamps are assumed to be in")
	homeTown := flags.String("home-town", os.Getenv("HOME_TOWN"), "city omitted from addresses")
	unitsFile := flags.String("units", os.Getenv("UNITS_FILE"), "YAML unit table")
	verbose := flags.BoolP("verbose", "v", false, "log parser diagnostics to stderr")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("missing --db (or DB_PATH)")
	}
	if *count <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := domain.Options{TimeZone: *timeZone, HomeTown: *homeTown}
	if _, err := opts.Location(); err != nil {
		return err
	}
	units, err := config.LoadUnitTable(*unitsFile)
	if err != nil {
		return err
	}

	history, err := archive.NewStore(*dbPath, opts, logger).History(*count)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(out, "no incidents in", *dbPath)
		return nil
	}

	rows := [][]string{{"Time", "Number", "Title", "Location", "Units", "Sources"}}
	views := make([]domain.View, 0, len(history))
	for _, a := range history {
		v := domain.NewView(domain.Incident{Started: a.Time, Updated: a.Time, Alarm: a}, opts, units, logger)
		views = append(views, v)
		rows = append(rows, []string{
			a.Time.In(opts.Local()).Format("2006-01-02 15:04"),
			a.Number,
			v.Title,
			v.Location,
			v.GroupedUnits,
			joinKinds(v.Sources),
		})
	}
	for _, line := range renderTable(rows) {
		fmt.Fprintln(out, line)
	}

	if *spoken {
		fmt.Fprintln(out)
		for _, v := range views {
			fmt.Fprintf(out, "%s: %s\n", v.Alarm.Number, v.SpokenText)
		}
	}
	return nil
}

func joinKinds(kinds []domain.SourceKind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ",")
}
