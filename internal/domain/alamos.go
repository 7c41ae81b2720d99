package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Keys of the flat Alamos JSON object.
const (
	alamosNumber        = "einsatznummer"
	alamosTimestamp     = "timestamp"
	alamosType          = "einsatzart"
	alamosKeyword       = "stichwort"
	alamosDiagnosis     = "zusatzstichwort"
	alamosRemark        = "bemerkung"
	alamosSpecialSignal = "sondersignal"
	alamosReporterName  = "meldender"
	alamosReporterPhone = "rufnummer"
	alamosPostalCode    = "plz"
	alamosCity          = "ort"
	alamosCityAbbr      = "ortskuerzel"
	alamosStreet        = "strasse"
	alamosHouseNumber   = "hausnummer"
	alamosBuilding      = "objekt"
	alamosLocationHint  = "etage"
	alamosLat           = "lat"
	alamosLon           = "lng"
	alamosResources     = "einsatzmittel"
)

var alamosRequired = []string{alamosNumber, alamosTimestamp}

// alamosResourceRe matches one resource line, e.g. "FW KLV01 DLK23 1":
// organization, locality, locality suffix, unit type, ordering code.
var alamosResourceRe = regexp.MustCompile(`^(\p{L}+) (\p{L}+)(\d+) ([\p{L}\d-]+) (\d+)$`)

// ParseAlamos decodes an Alamos JSON payload and converts it with AlarmFromAlamos.
func ParseAlamos(payload []byte, opts Options, logger *slog.Logger) (Alarm, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return Alarm{}, fmt.Errorf("%w: parse json: %v", ErrMalformedDocument, err)
	}
	a, err := AlarmFromAlamos(data, opts, logger)
	if err != nil {
		return Alarm{}, err
	}
	a.SetRaw(SourceJSON, payload)
	return a, nil
}

// AlarmFromAlamos maps the Alamos key set onto an Alarm. Missing required keys
// or an unreadable timestamp fail with ErrMalformedDocument.
func AlarmFromAlamos(data map[string]any, opts Options, logger *slog.Logger) (Alarm, error) {
	for _, key := range alamosRequired {
		if _, ok := data[key]; !ok {
			return Alarm{}, fmt.Errorf("%w: missing key %q", ErrMalformedDocument, key)
		}
	}

	var a Alarm
	a.Sources = a.Sources.With(SourceJSON)

	ts, err := alamosTime(jsonString(data, alamosTimestamp), opts)
	if err != nil {
		return Alarm{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	a.Time = ts

	a.Number = jsonString(data, alamosNumber)
	a.Type = jsonString(data, alamosType)
	a.Keyword = jsonString(data, alamosKeyword)
	a.Diagnosis = jsonString(data, alamosDiagnosis)
	a.Remark = jsonString(data, alamosRemark)
	if _, ok := data[alamosSpecialSignal]; ok {
		a.SpecialSignal = "0"
		if jsonString(data, alamosSpecialSignal) == "Ja" {
			a.SpecialSignal = "1"
		}
	}
	a.ReporterName = jsonString(data, alamosReporterName)
	a.ReporterPhone = jsonString(data, alamosReporterPhone)
	a.PostalCode = jsonString(data, alamosPostalCode)
	a.City = jsonString(data, alamosCity)
	if a.City == "" {
		a.City = jsonString(data, alamosCityAbbr)
	}
	a.Street = jsonString(data, alamosStreet)
	a.HouseNumber = jsonString(data, alamosHouseNumber)
	a.BuildingName = jsonString(data, alamosBuilding)
	a.LocationHint = jsonString(data, alamosLocationHint)
	a.Lat = jsonFloat(data, alamosLat, logger)
	a.Lon = jsonFloat(data, alamosLon, logger)

	for _, line := range strings.Split(jsonString(data, alamosResources), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a.Resources.Add(ParseResourceLine(line))
	}
	return a, nil
}

// ParseResourceLine parses "ORG LOCxx TYPE n". A line that does not follow
// the grammar (e.g. "LZ Kleve") is kept only as the spoken designation.
func ParseResourceLine(line string) Resource {
	m := alamosResourceRe.FindStringSubmatch(line)
	if m == nil {
		return Resource{SpokenDesignation: line}
	}
	return Resource{
		Organization:      m[1],
		Locality:          m[2],
		LocalitySuffix:    m[3],
		UnitType:          m[4],
		OrderingCode:      m[5],
		SpokenDesignation: line,
	}
}

// alamosTime converts a millisecond epoch to the host's wall clock and
// interprets that wall clock in the assumed zone.
func alamosTime(s string, opts Options) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	local := time.UnixMilli(ms).In(opts.Local())
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(),
		opts.location()), nil
}

// jsonString returns the trimmed string form of data[key], or "".
func jsonString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// jsonFloat returns data[key] as float64, accepting numbers and numeric
// strings. Anything else yields 0.
func jsonFloat(data map[string]any, key string, logger *slog.Logger) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logger.Warn("invalid coordinate", "key", key, "value", v)
			return 0
		}
		return f
	default:
		return 0
	}
}
