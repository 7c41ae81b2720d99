package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUnits = UnitTable{
	Units:               map[string]string{"01": "LZ Kleve", "02": "LG Materborn", "05": "LG Reichswalde"},
	SpecialSuffixes:     map[string][]string{"LZ Kleve": {"01"}},
	IgnoreOrganizations: []string{"RD"},
}

func TestUnitTable_Ignore(t *testing.T) {
	assert.True(t, testUnits.Ignore(Resource{Organization: "RD"}))
	assert.False(t, testUnits.Ignore(Resource{Organization: "FW"}))
	assert.False(t, UnitTable{}.Ignore(Resource{Organization: "RD"}))
}

func TestNewView(t *testing.T) {
	a := ParsePager(telegramWolfsgraben, DefaultOptions(), discardLogger())
	a.Resources.Add(ParseResourceLine("FW KLV05 LF10 1"))
	a.Resources.Add(ParseResourceLine("RD KLV01 RTW 1"))
	inc := Incident{
		ID:      "6f1c1f4e-0000-4000-8000-000000000000",
		Started: time.Date(2017, 12, 21, 10, 55, 10, 0, time.UTC),
		Alarm:   a,
	}

	v := NewView(inc, Options{HomeTown: "Kleve"}, testUnits, discardLogger())

	assert.Equal(t, inc.ID, v.ID)
	assert.Equal(t, "B2 Kaminbrand", v.Title)
	assert.Equal(t, "feuer", v.Image)
	assert.Equal(t, "Wolfsgraben 11, Reichswalde", v.Address)
	assert.Equal(t, "LG Reichswalde", v.GroupedUnits)
	assert.Equal(t, "FW KLV05 LF10 1, RD KLV01 RTW 1", v.AlertedUnits)
	assert.True(t, v.Test)
	assert.Len(t, v.Resources, 2)
	assert.Equal(t, []SourceKind{SourcePager}, v.Sources)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title":"B2 Kaminbrand"`)
	assert.Contains(t, string(data), `"sources":["pager"]`)
	assert.NotContains(t, string(data), "Raw")
}

func TestIncident_Clone(t *testing.T) {
	inc := Incident{ID: "x", Conflicts: []Conflict{{Field: "diagnosis"}}}
	inc.Alarm.Resources.Add(Resource{SpokenDesignation: "LZ Kleve"})

	c := inc.Clone()
	c.Conflicts[0].Field = "remark"
	c.Alarm.Resources.Add(Resource{SpokenDesignation: "RD KLV01 RTW 1"})

	assert.Equal(t, "diagnosis", inc.Conflicts[0].Field)
	assert.Equal(t, 1, inc.Alarm.Resources.Len())
}
