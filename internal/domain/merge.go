package domain

import "log/slog"

// numberSuffixLen is the number of trailing characters of the tracking
// number that are stable across sources.
const numberSuffixLen = 5

// Matches reports whether a and b describe the same incident. Sources prefix
// the tracking number differently, so only the last five characters count.
func (a *Alarm) Matches(b *Alarm) bool {
	if a.Number == "" || b.Number == "" {
		return false
	}
	return numberSuffix(a.Number) == numberSuffix(b.Number)
}

func numberSuffix(n string) string {
	r := []rune(n)
	if len(r) <= numberSuffixLen {
		return n
	}
	return string(r[len(r)-numberSuffixLen:])
}

// Conflict describes a field where both records carried different non-empty values.
type Conflict struct {
	Field    string `json:"field"`
	Current  string `json:"current"`
	Incoming string `json:"incoming"`
}

// mergeField gives the reconciler typed access to one text field.
type mergeField struct {
	name string
	ref  func(*Alarm) *string
}

// mergeFields lists the text fields reconciled by Merge. Time, coordinates,
// raw payloads and fallback text are deliberately absent.
var mergeFields = []mergeField{
	{"type", func(a *Alarm) *string { return &a.Type }},
	{"keyword", func(a *Alarm) *string { return &a.Keyword }},
	{"diagnosis", func(a *Alarm) *string { return &a.Diagnosis }},
	{"escalation", func(a *Alarm) *string { return &a.Escalation }},
	{"remark", func(a *Alarm) *string { return &a.Remark }},
	{"special_signal", func(a *Alarm) *string { return &a.SpecialSignal }},
	{"reporter_name", func(a *Alarm) *string { return &a.ReporterName }},
	{"reporter_phone", func(a *Alarm) *string { return &a.ReporterPhone }},
	{"postal_code", func(a *Alarm) *string { return &a.PostalCode }},
	{"city", func(a *Alarm) *string { return &a.City }},
	{"city_subdivision", func(a *Alarm) *string { return &a.CitySubdivision }},
	{"street", func(a *Alarm) *string { return &a.Street }},
	{"house_number", func(a *Alarm) *string { return &a.HouseNumber }},
	{"location_hint", func(a *Alarm) *string { return &a.LocationHint }},
	{"building_name", func(a *Alarm) *string { return &a.BuildingName }},
	{"building_plan_number", func(a *Alarm) *string { return &a.BuildingPlanNumber }},
}

// Merge folds other into a. A longer tracking number replaces a shorter one.
// Empty text fields of a are filled from other; differing non-empty values
// keep a's value and are reported as conflicts. Source kinds and resources
// are united. other is not modified.
func (a *Alarm) Merge(other *Alarm, logger *slog.Logger) []Conflict {
	logger.Info("merging alarms", "number", a.Number, "incoming_number", other.Number)

	if other.Number != "" && (a.Number == "" || len([]rune(a.Number)) < len([]rune(other.Number))) {
		logger.Info("preferring longer number", "number", other.Number, "previous", a.Number)
		a.Number = other.Number
	}

	var conflicts []Conflict
	for _, f := range mergeFields {
		incoming := *f.ref(other)
		if incoming == "" {
			continue
		}
		current := f.ref(a)
		if *current == "" {
			logger.Info("adopting field", "field", f.name, "value", incoming)
			*current = incoming
			continue
		}
		if *current != incoming {
			logger.Info("field is differing", "field", f.name, "current", *current, "incoming", incoming)
			conflicts = append(conflicts, Conflict{Field: f.name, Current: *current, Incoming: incoming})
		}
	}

	a.Sources = a.Sources.Union(other.Sources)
	a.Resources.Union(other.Resources)

	logger.Info("merge complete", "number", a.Number, "conflicts", len(conflicts))
	return conflicts
}
