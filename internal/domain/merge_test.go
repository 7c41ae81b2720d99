package domain

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarm_Matches(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"prefixed and short", "1170040004", "40004", true},
		{"different suffix", "40004", "40005", false},
		{"equal", "40004", "40004", true},
		{"shorter than suffix", "404", "404", true},
		{"empty left", "", "40004", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Alarm{Number: tt.a}
			b := Alarm{Number: tt.b}
			assert.Equal(t, tt.want, a.Matches(&b))
			assert.Equal(t, tt.want, b.Matches(&a))
		})
	}
}

func TestAlarm_Merge_NumberPrecedence(t *testing.T) {
	t.Run("target already longer", func(t *testing.T) {
		target := Alarm{Number: "1170040004"}
		incoming := Alarm{Number: "40004"}

		target.Merge(&incoming, discardLogger())

		assert.Equal(t, "1170040004", target.Number)
	})

	t.Run("incoming longer", func(t *testing.T) {
		target := Alarm{Number: "40004"}
		incoming := Alarm{Number: "1170040004"}

		target.Merge(&incoming, discardLogger())

		assert.Equal(t, "1170040004", target.Number)
	})
}

func TestAlarm_Merge_ConflictKeepsFirstWriter(t *testing.T) {
	target := Alarm{Number: "40004", Diagnosis: "Wohnungsbrand"}
	incoming := Alarm{Number: "40004", Diagnosis: "Kaminbrand"}

	var buf bytes.Buffer
	conflicts := target.Merge(&incoming, slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.Equal(t, "Wohnungsbrand", target.Diagnosis)
	require.Len(t, conflicts, 1)
	assert.Equal(t, Conflict{Field: "diagnosis", Current: "Wohnungsbrand", Incoming: "Kaminbrand"}, conflicts[0])

	var logged []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "field is differing" {
			logged = append(logged, rec)
		}
	}
	require.Len(t, logged, 1)
	assert.Equal(t, "INFO", logged[0]["level"])
	assert.Equal(t, "diagnosis", logged[0]["field"])
	assert.Equal(t, "Wohnungsbrand", logged[0]["current"])
	assert.Equal(t, "Kaminbrand", logged[0]["incoming"])
}

func TestAlarm_Merge_PagerThenMail(t *testing.T) {
	pager := ParsePager(telegramWolfsgraben, DefaultOptions(), discardLogger())
	pagerTime := pager.Time

	mail := Alarm{
		Number:        "1170040004",
		Time:          time.Date(2017, 12, 21, 10, 56, 0, 0, time.UTC),
		Type:          "B",
		Keyword:       "2",
		Diagnosis:     "Kaminbrand",
		Remark:        "keine Personen mehr im Gebäude",
		ReporterName:  "Müller",
		ReporterPhone: "0179 555 364532",
		City:          "Kleve",
		Street:        "Wolfsgraben",
		HouseNumber:   "11",
		SpecialSignal: "1",
		Lat:           1,
		Lon:           2,
		Resources: NewResourceSet(
			Resource{Organization: "FW", Locality: "KLV", LocalitySuffix: "05", UnitType: "LF10", OrderingCode: "1"},
			Resource{Organization: "FW", Locality: "KLV", LocalitySuffix: "02", UnitType: "LF20", OrderingCode: "1"},
		),
	}
	mail.SetRaw(SourceXML, []byte("<daten/>"))

	require.True(t, pager.Matches(&mail))
	conflicts := pager.Merge(&mail, discardLogger())

	assert.Empty(t, conflicts)
	assert.Equal(t, "1170040004", pager.Number)
	assert.Equal(t, "keine Personen mehr im Gebäude", pager.Remark)
	assert.Equal(t, "Müller", pager.ReporterName)
	assert.Equal(t, "1", pager.SpecialSignal)
	assert.Equal(t, "Reichswalde", pager.CitySubdivision)
	assert.True(t, pagerTime.Equal(pager.Time), "time stays with the first record")
	assert.InDelta(t, 51.75638, pager.Lat, 1e-9, "coordinates stay with the first record")
	assert.Equal(t, 2, pager.Resources.Len())
	assert.Equal(t, []SourceKind{SourcePager, SourceXML}, pager.Sources.Kinds())
}

func TestAlarm_Merge_DoesNotModifyIncoming(t *testing.T) {
	target := Alarm{Number: "40004"}
	incoming := Alarm{Number: "40004", Street: "Wolfsgraben"}
	incoming.Resources.Add(Resource{SpokenDesignation: "LZ Kleve"})

	target.Merge(&incoming, discardLogger())
	target.Resources.Add(Resource{SpokenDesignation: "RD KLV01 RTW 1"})

	assert.Equal(t, "Wolfsgraben", target.Street)
	assert.Equal(t, 1, incoming.Resources.Len())
}

func TestAlarm_Merge_SourcesOnlyGrow(t *testing.T) {
	var target, incoming Alarm
	target.Number, incoming.Number = "40004", "40004"
	target.Sources = target.Sources.With(SourcePager).With(SourceJSON)
	incoming.Sources = incoming.Sources.With(SourceXML)

	target.Merge(&incoming, discardLogger())

	assert.True(t, target.Sources.Has(SourcePager))
	assert.True(t, target.Sources.Has(SourceXML))
	assert.True(t, target.Sources.Has(SourceJSON))
}
