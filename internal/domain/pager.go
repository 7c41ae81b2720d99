package domain

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

const pagerTimeLayout = "02-01-06 15:04:05"

var (
	// pagerCoordRe matches the coordinate token, e.g. "#K01;N5174110E0608130;".
	pagerCoordRe = regexp.MustCompile(`#K01;N(\d+)E(\d+);`)

	// pagerRe matches a telegram once the coordinate token is removed:
	//
	//	DD-MM-YY HH:MM:SS <station> *<number>*<TK> <diagnosis>*<remark>*<city>*
	//	<subdivision>*<street>*<house>*<plan>*<hint>
	//
	// Interior fields may be empty and are matched non-greedily.
	pagerRe = regexp.MustCompile(`^.*?(\d\d-\d\d-\d\d \d\d:\d\d:\d\d)\s+(.*?)\s*\*(.*?)\*(..)\s+(.*?)\*(.*?)\*(.*?)\*(.*?)\*(.*?)\*(.*?)\*(.*?)\*(.*)`)

	// pagerCharset maps the 7-bit substitutes the pager encoder sends for umlauts.
	pagerCharset = strings.NewReplacer(
		"[", "Ä",
		`\`, "Ö",
		"]", "Ü",
		"{", "ä",
		"|", "ö",
		"}", "ü",
		"~", "ß",
	)
)

// DecodePager turns a raw serial frame into telegram text: latin1 decoding
// followed by the umlaut remapping of the restricted pager character set.
func DecodePager(frame []byte) string {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(frame)
	if err != nil {
		// latin1 maps every byte, so this is unreachable in practice.
		text = frame
	}
	return pagerCharset.Replace(string(text))
}

// ParsePager parses a pager telegram. The time is taken from the host clock
// or the telegram, depending on opts.
func ParsePager(text string, opts Options, logger *slog.Logger) Alarm {
	return parsePager(text, time.Time{}, opts, logger)
}

// ParsePagerAt parses a pager telegram and uses at as the alarm time,
// regardless of the telegram content. Used when replaying archived telegrams.
func ParsePagerAt(text string, at time.Time, opts Options, logger *slog.Logger) Alarm {
	return parsePager(text, at, opts, logger)
}

func parsePager(text string, at time.Time, opts Options, logger *slog.Logger) Alarm {
	var a Alarm
	a.SetRaw(SourcePager, []byte(text))

	rest := text
	if loc := pagerCoordRe.FindStringSubmatchIndex(rest); loc != nil {
		a.Lat = decodePagerCoord(rest[loc[2]:loc[3]], logger)
		a.Lon = decodePagerCoord(rest[loc[4]:loc[5]], logger)
		rest = rest[:loc[0]] + rest[loc[1]:]
	}

	m := pagerRe.FindStringSubmatch(rest)
	if m == nil {
		logger.Warn("pager telegram not recognized", "text", text)
		fallback := Alarm{FallbackText: text}
		fallback.SetRaw(SourcePager, []byte(text))
		return fallback
	}
	tk := []rune(m[4])
	for i := range m {
		m[i] = strings.TrimSpace(m[i])
	}

	switch {
	case !at.IsZero():
		a.Time = at
	case opts.PagerUseHostClock:
		a.Time = clock.Now().In(opts.Local())
	default:
		t, err := time.ParseInLocation(pagerTimeLayout, m[1], opts.location())
		if err != nil {
			logger.Warn("invalid pager timestamp", "value", m[1], "error", err)
		} else {
			a.Time = t
		}
	}

	logger.Debug("pager telegram", "station", m[2])

	a.Number = m[3]
	a.Type = strings.TrimSpace(string(tk[0]))
	a.Keyword = strings.TrimSpace(string(tk[1]))
	a.Diagnosis = m[5]
	a.Remark = m[6]
	a.City = m[7]
	a.CitySubdivision = m[8]
	a.Street = m[9]
	a.HouseNumber = m[10]
	a.BuildingPlanNumber = m[11]
	a.LocationHint = m[12]
	return a
}

// decodePagerCoord inserts the decimal point after the second digit:
// "5174110" -> 51.74110.
func decodePagerCoord(digits string, logger *slog.Logger) float64 {
	s := digits
	if len(s) > 2 {
		s = s[:2] + "." + s[2:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logger.Warn("invalid pager coordinate", "value", digits, "error", err)
		return 0
	}
	return v
}
