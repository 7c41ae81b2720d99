package domain

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// testNumberLimit: tracking numbers below this value belong to test alarms.
const testNumberLimit = 1160000000

var images = map[string]string{
	"B": "feuer",
	"C": "abc",
	"H": "hilfe",
}

var spokenTypes = map[string]string{
	"B": "Brand",
	"C": "ABC-Einsatz",
	"H": "Hilfeleistung",
}

// unitPriority orders alerted units by the first token of their spoken
// designation. Unknown prefixes sort last.
var unitPriority = map[string]int{
	"LZ": 1,
	"LG": 2,
	"FW": 3,
	"RD": 4,
}

const defaultUnitPriority = 5

// Title returns type, keyword and diagnosis, e.g. "B3 Wohnungsbrand", or ""
// unless all three are known.
func (a *Alarm) Title() string {
	if a.Type == "" || a.Keyword == "" || a.Diagnosis == "" {
		return ""
	}
	return a.Type + a.Keyword + " " + a.Diagnosis
}

// ImageBase returns the icon key for the incident type, or "".
func (a *Alarm) ImageBase() string {
	return images[strings.ToUpper(a.Type)]
}

// Address renders street, house number, subdivision and city. The city is
// left out when it is the configured home town.
func (a *Alarm) Address(opts Options) string {
	var b strings.Builder
	appendPart := func(sep, s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s)
	}
	appendPart("", a.Street)
	appendPart(" ", a.HouseNumber)
	appendPart(", ", a.CitySubdivision)
	if a.City != opts.HomeTown {
		appendPart(", ", a.City)
	}
	return b.String()
}

// Location is the address followed by the building name in parentheses.
func (a *Alarm) Location(opts Options) string {
	ret := a.Address(opts)
	if a.BuildingName != "" {
		ret += " (" + a.BuildingName + ")"
	}
	return ret
}

// CallerInfo renders "name / phone" from whatever is known.
func (a *Alarm) CallerInfo() string {
	ret := a.ReporterName
	if a.ReporterPhone != "" {
		if ret != "" {
			ret += " / "
		}
		ret += a.ReporterPhone
	}
	return ret
}

// NoSpecialSignal reports whether the special signal flag is explicitly
// false. An absent flag is not false.
func (a *Alarm) NoSpecialSignal() bool {
	switch strings.ToLower(strings.TrimSpace(a.SpecialSignal)) {
	case "0", "false", "nein", "no":
		return true
	default:
		return false
	}
}

// SpokenText builds the German announcement for text-to-speech.
func (a *Alarm) SpokenText(opts Options) string {
	var clauses []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			clauses = append(clauses, s)
		}
	}

	if a.Type != "" {
		kind, ok := spokenTypes[strings.ToUpper(a.Type)]
		if !ok {
			kind = a.Type
		}
		add(kind + " " + a.Keyword)
	}
	add(a.Diagnosis)
	add(a.Escalation)

	var place []string
	if a.CitySubdivision != "" {
		place = append(place, a.CitySubdivision)
	}
	if a.City != "" && a.City != opts.HomeTown && a.City != a.CitySubdivision {
		place = append(place, a.City)
	}
	if len(place) > 0 {
		add("in " + strings.Join(place, ", "))
	}

	add(a.Street + " " + a.HouseNumber)
	if a.BuildingName != "" {
		add("Objekt " + a.BuildingName)
	}
	add(a.Remark)
	if a.NoSpecialSignal() {
		add("Ohne Sondersignal")
	}

	if len(clauses) == 0 {
		return ""
	}
	return strings.Join(clauses, ". ") + "."
}

// GroupedUnits names the home units involved. Each resource that is not
// ignored contributes its locality suffix, plus any suffixes listed for its
// spoken designation in overrides. Suffixes missing from units are logged and
// skipped. Names are rendered in suffix order. Without a unit table the
// result is empty and nothing is logged.
func (a *Alarm) GroupedUnits(units map[string]string, ignore func(Resource) bool,
	overrides map[string][]string, logger *slog.Logger,
) string {
	if len(units) == 0 {
		return ""
	}
	codes := make(map[string]struct{})
	for _, r := range a.Resources.Slice() {
		if ignore != nil && ignore(r) {
			continue
		}
		if r.LocalitySuffix != "" {
			codes[r.LocalitySuffix] = struct{}{}
		}
		for _, c := range overrides[r.SpokenDesignation] {
			codes[c] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(codes))
	for c := range codes {
		if _, ok := units[c]; !ok {
			logger.Error("unknown locality suffix", "suffix", c)
			continue
		}
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	names := make([]string, len(sorted))
	for i, c := range sorted {
		names[i] = units[c]
	}
	return strings.Join(names, ", ")
}

// AlertedUnits lists the spoken designations of all resources, ordered by
// unit priority (LZ, LG, FW, RD, others) and then alphabetically.
func (a *Alarm) AlertedUnits() string {
	seen := make(map[string]struct{})
	var names []string
	for r := range a.Resources.m {
		name := r.SpokenDesignation
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := designationPriority(names[i]), designationPriority(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return strings.Join(names, ", ")
}

func designationPriority(name string) int {
	prefix, _, _ := strings.Cut(name, " ")
	if p, ok := unitPriority[prefix]; ok {
		return p
	}
	return defaultUnitPriority
}

// IsTest reports whether the tracking number marks a test alarm. Missing or
// non-numeric numbers are not test alarms.
func (a *Alarm) IsTest() bool {
	n, err := strconv.ParseInt(strings.TrimSpace(a.Number), 10, 64)
	if err != nil {
		return false
	}
	return n < testNumberLimit
}

// Affects reports whether any resource belongs to the given organization,
// locality and numeric locality suffix.
func (a *Alarm) Affects(org, locality string, suffix int) bool {
	for r := range a.Resources.m {
		if r.Affects(org, locality, suffix) {
			return true
		}
	}
	return false
}

// FilterResources removes every resource for which ignore returns true.
func (a *Alarm) FilterResources(ignore func(Resource) bool) {
	var kept ResourceSet
	for r := range a.Resources.m {
		if !ignore(r) {
			kept.Add(r)
		}
	}
	a.Resources = kept
}

// Affects reports whether r matches organization, locality and numeric suffix.
func (r Resource) Affects(org, locality string, suffix int) bool {
	n, err := strconv.Atoi(r.LocalitySuffix)
	if err != nil {
		return false
	}
	return r.Organization == org && r.Locality == locality && n == suffix
}

// String renders the resource in fixed columns for logs.
func (r Resource) String() string {
	or := func(s, placeholder string) string {
		if s == "" {
			return placeholder
		}
		return s
	}
	typ := "******"
	if r.UnitType != "" {
		typ = fmt.Sprintf("%-6s", r.UnitType)
	}
	ret := or(r.Organization, "**") + " " +
		or(r.Locality, "***") + " " +
		or(r.LocalitySuffix, "**") + " " +
		typ + " " +
		or(r.OrderingCode, "**")
	if r.SpokenDesignation != "" {
		ret += " " + r.SpokenDesignation
	}
	return ret
}
