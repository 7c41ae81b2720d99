package domain

import (
	"log/slog"
	"slices"
	"time"
)

// Incident is the active incident as tracked by the coordinator: the merged
// alarm plus timeline bookkeeping.
type Incident struct {
	ID        string
	Started   time.Time
	Updated   time.Time
	Alarm     Alarm
	Conflicts []Conflict
}

// Clone returns a deep copy of the incident.
func (i *Incident) Clone() Incident {
	c := *i
	c.Alarm = i.Alarm.Clone()
	c.Conflicts = slices.Clone(i.Conflicts)
	return c
}

// Update is emitted to sinks for every processed payload.
type Update struct {
	// New is set when the payload started a new incident timeline.
	New bool
	// Alarm is the record parsed from Payload, before merging.
	Alarm    Alarm
	Incident Incident
	View     View
	// Payload is the payload that caused the update, as received.
	Payload RawPayload
}

// UnitTable describes the home units for grouped rendering.
type UnitTable struct {
	// Units maps locality suffix codes ("01") to display names ("LZ Kleve").
	Units map[string]string `yaml:"units"`
	// SpecialSuffixes adds suffix codes for spoken designations without one.
	SpecialSuffixes map[string][]string `yaml:"special_suffixes"`
	// IgnoreOrganizations lists organizations left out of grouped units.
	IgnoreOrganizations []string `yaml:"ignore_organizations"`
}

// Ignore reports whether r belongs to an ignored organization.
func (t UnitTable) Ignore(r Resource) bool {
	return slices.Contains(t.IgnoreOrganizations, r.Organization)
}

// View is the rendered incident served to displays and published to brokers.
type View struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Updated time.Time `json:"updated"`
	Alarm   Alarm     `json:"alarm"`

	Title        string `json:"title,omitempty"`
	Image        string `json:"image,omitempty"`
	Address      string `json:"address,omitempty"`
	Location     string `json:"location,omitempty"`
	CallerInfo   string `json:"caller_info,omitempty"`
	SpokenText   string `json:"spoken_text,omitempty"`
	GroupedUnits string `json:"grouped_units,omitempty"`
	AlertedUnits string `json:"alerted_units,omitempty"`
	Test         bool   `json:"test"`

	Resources []Resource   `json:"resources"`
	Sources   []SourceKind `json:"sources"`
	Conflicts []Conflict   `json:"conflicts,omitempty"`
}

// NewView renders inc with the derived views.
func NewView(inc Incident, opts Options, units UnitTable, logger *slog.Logger) View {
	a := &inc.Alarm
	return View{
		ID:           inc.ID,
		Started:      inc.Started,
		Updated:      inc.Updated,
		Alarm:        inc.Alarm,
		Title:        a.Title(),
		Image:        a.ImageBase(),
		Address:      a.Address(opts),
		Location:     a.Location(opts),
		CallerInfo:   a.CallerInfo(),
		SpokenText:   a.SpokenText(opts),
		GroupedUnits: a.GroupedUnits(units.Units, units.Ignore, units.SpecialSuffixes, logger),
		AlertedUnits: a.AlertedUnits(),
		Test:         a.IsTest(),
		Resources:    a.Resources.Slice(),
		Sources:      a.Sources.Kinds(),
		Conflicts:    inc.Conflicts,
	}
}
