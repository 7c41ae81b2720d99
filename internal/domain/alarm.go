package domain

import (
	"sort"
	"time"
)

// SourceKind identifies the channel a payload arrived on.
type SourceKind string

const (
	SourcePager SourceKind = "pager"
	SourceXML   SourceKind = "xml"
	SourceJSON  SourceKind = "json"
)

// Ext returns the archive file extension for the source kind.
func (k SourceKind) Ext() string {
	switch k {
	case SourcePager:
		return "dme"
	case SourceXML:
		return "xml"
	case SourceJSON:
		return "json"
	default:
		return ""
	}
}

func (k SourceKind) bit() SourceSet {
	switch k {
	case SourcePager:
		return 1 << 0
	case SourceXML:
		return 1 << 1
	case SourceJSON:
		return 1 << 2
	default:
		return 0
	}
}

var allSourceKinds = []SourceKind{SourcePager, SourceXML, SourceJSON}

// SourceSet is the set of source kinds that contributed to an alarm.
// It only grows: merging takes the union.
type SourceSet uint8

// With returns the set extended by k.
func (s SourceSet) With(k SourceKind) SourceSet { return s | k.bit() }

// Has reports whether k is in the set.
func (s SourceSet) Has(k SourceKind) bool { return k.bit() != 0 && s&k.bit() != 0 }

// Union returns the union of both sets.
func (s SourceSet) Union(o SourceSet) SourceSet { return s | o }

// Kinds lists the members in pager, xml, json order.
func (s SourceSet) Kinds() []SourceKind {
	var out []SourceKind
	for _, k := range allSourceKinds {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Resource is one alerted unit (vehicle or team). Resources are plain values:
// two resources with equal fields are the same resource.
type Resource struct {
	Organization      string `json:"organization,omitempty"`
	Locality          string `json:"locality,omitempty"`
	LocalitySuffix    string `json:"locality_suffix,omitempty"`
	UnitType          string `json:"unit_type,omitempty"`
	OrderingCode      string `json:"ordering_code,omitempty"`
	SpokenDesignation string `json:"spoken_designation,omitempty"`
}

// ResourceSet holds resources with value semantics for membership.
// The zero value is an empty set ready to use.
type ResourceSet struct {
	m map[Resource]struct{}
}

// NewResourceSet returns a set containing rs.
func NewResourceSet(rs ...Resource) ResourceSet {
	var s ResourceSet
	for _, r := range rs {
		s.Add(r)
	}
	return s
}

// Add inserts r. Adding a resource that is already present is a no-op.
func (s *ResourceSet) Add(r Resource) {
	if s.m == nil {
		s.m = make(map[Resource]struct{})
	}
	s.m[r] = struct{}{}
}

// Contains reports whether r is in the set.
func (s ResourceSet) Contains(r Resource) bool {
	_, ok := s.m[r]
	return ok
}

// Len returns the number of distinct resources.
func (s ResourceSet) Len() int { return len(s.m) }

// Union adds every member of o to s.
func (s *ResourceSet) Union(o ResourceSet) {
	for r := range o.m {
		s.Add(r)
	}
}

// Slice returns the members in a stable order (by their String rendering).
func (s ResourceSet) Slice() []Resource {
	out := make([]Resource, 0, len(s.m))
	for r := range s.m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Clone returns an independent copy of the set.
func (s ResourceSet) Clone() ResourceSet {
	var c ResourceSet
	c.Union(s)
	return c
}

// Alarm is the canonical incident record all three feeds are normalized into.
type Alarm struct {
	Number             string    `json:"number,omitempty"`
	Time               time.Time `json:"time,omitzero"`
	Type               string    `json:"type,omitempty"`
	Keyword            string    `json:"keyword,omitempty"`
	Diagnosis          string    `json:"diagnosis,omitempty"`
	Escalation         string    `json:"escalation,omitempty"`
	Remark             string    `json:"remark,omitempty"`
	SpecialSignal      string    `json:"special_signal,omitempty"`
	ReporterName       string    `json:"reporter_name,omitempty"`
	ReporterPhone      string    `json:"reporter_phone,omitempty"`
	PostalCode         string    `json:"postal_code,omitempty"`
	City               string    `json:"city,omitempty"`
	CitySubdivision    string    `json:"city_subdivision,omitempty"`
	Street             string    `json:"street,omitempty"`
	HouseNumber        string    `json:"house_number,omitempty"`
	LocationHint       string    `json:"location_hint,omitempty"`
	BuildingName       string    `json:"building_name,omitempty"`
	BuildingPlanNumber string    `json:"building_plan_number,omitempty"`
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`

	Resources ResourceSet `json:"-"`
	Sources   SourceSet   `json:"-"`

	// Raw keeps the original payload per source kind for archiving and forwarding.
	Raw map[SourceKind][]byte `json:"-"`

	// FallbackText is set when a pager telegram did not match the grammar.
	// All structured fields are empty in that case.
	FallbackText string `json:"fallback_text,omitempty"`
}

// SetRaw records the payload for kind and marks the kind as seen.
func (a *Alarm) SetRaw(kind SourceKind, payload []byte) {
	if a.Raw == nil {
		a.Raw = make(map[SourceKind][]byte, 1)
	}
	a.Raw[kind] = payload
	a.Sources = a.Sources.With(kind)
}

// HasCoordinates reports whether lat/lon were set by any source.
func (a *Alarm) HasCoordinates() bool {
	return a.Lat != 0 || a.Lon != 0
}

// Clone returns a deep copy that shares no maps with a.
func (a *Alarm) Clone() Alarm {
	c := *a
	c.Resources = a.Resources.Clone()
	if a.Raw != nil {
		c.Raw = make(map[SourceKind][]byte, len(a.Raw))
		for k, v := range a.Raw {
			c.Raw[k] = append([]byte(nil), v...)
		}
	}
	return c
}
