package domain

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const xmlTimeLayout = "20060102150405"

var (
	// xmlPointRe extracts lon/lat from WKT-like text: "POINT (6.16825119 51.80245845)".
	xmlPointRe = regexp.MustCompile(`\(\s*([-+]?\d+(?:\.\d*)?)\s+([-+]?\d+(?:\.\d*)?)\s*\)`)

	// xmlPlanNumberRe splits "[object name] KLV 06/666" into prefix and plan number.
	xmlPlanNumberRe = regexp.MustCompile(`^\s*(\[.*\])\s*(.*)`)
)

// xmlDocument mirrors the envelope of the mail attachment. Unknown elements
// are ignored by encoding/xml.
type xmlDocument struct {
	XMLName   xml.Name      `xml:"daten"`
	Incident  xmlIncident   `xml:"einsatz"`
	Location  xmlLocation   `xml:"einsatzort"`
	Resources []xmlResource `xml:"einsatzmittel>em"`
}

type xmlIncident struct {
	Timestamp     string `xml:"timestamp"`
	Number        string `xml:"einsatznummer"`
	Type          string `xml:"einsatzart"`
	Keyword       string `xml:"einsatzstichwort"`
	Diagnosis     string `xml:"diagnose"`
	Escalation    string `xml:"eskalation"`
	Remark        string `xml:"besonderheit"`
	SpecialSignal string `xml:"sondersignal"`
	ReporterName  string `xml:"meldender"`
	ReporterPhone string `xml:"rufnummer"`
}

type xmlLocation struct {
	PostalCode      string    `xml:"plz"`
	City            string    `xml:"ort"`
	CitySubdivision string    `xml:"ortsteil"`
	Street          string    `xml:"strasse"`
	HouseNumber     string    `xml:"hausnummer"`
	Object          xmlObject `xml:"objekt"`
	Coordinates     *string   `xml:"koordinaten"`
}

type xmlObject struct {
	Name       string `xml:"o_name"`
	PlanNumber string `xml:"o_nummer"`
}

type xmlResource struct {
	Organization      string `xml:"em_organisation"`
	Locality          string `xml:"em_ort"`
	LocalitySuffix    string `xml:"em_ort_zusatz"`
	UnitType          string `xml:"em_typ"`
	OrderingCode      string `xml:"em_ordnungskennung"`
	SpokenDesignation string `xml:"em_opta_gesprochen"`
}

// ParseXML parses the XML attachment of an alarm mail. It fails with
// ErrMalformedDocument if the payload is not a well-formed incident envelope;
// problems in individual fields are logged and leave the field empty.
func ParseXML(payload []byte, opts Options, logger *slog.Logger) (Alarm, error) {
	var doc xmlDocument
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.CharsetReader = charset.NewReaderLabel
	// Decoding fails if the root element is not <daten>.
	if err := dec.Decode(&doc); err != nil {
		return Alarm{}, fmt.Errorf("%w: parse xml: %v", ErrMalformedDocument, err)
	}

	var a Alarm
	a.SetRaw(SourceXML, payload)

	inc := doc.Incident
	a.Number = strings.TrimSpace(inc.Number)
	a.Type = strings.TrimSpace(inc.Type)
	a.Keyword = strings.TrimSpace(inc.Keyword)
	a.Diagnosis = strings.TrimSpace(inc.Diagnosis)
	a.Escalation = normalizeEscalation(inc.Escalation)
	a.Remark = strings.TrimSpace(inc.Remark)
	a.SpecialSignal = strings.TrimSpace(inc.SpecialSignal)
	a.ReporterName = strings.TrimSpace(inc.ReporterName)
	a.ReporterPhone = strings.TrimSpace(inc.ReporterPhone)
	if ts := strings.TrimSpace(inc.Timestamp); ts != "" {
		t, err := time.ParseInLocation(xmlTimeLayout, ts, time.UTC)
		if err != nil {
			logger.Warn("invalid xml timestamp", "value", ts, "error", err)
		} else {
			a.Time = t.In(opts.location())
		}
	}

	loc := doc.Location
	a.PostalCode = strings.TrimSpace(loc.PostalCode)
	a.City = strings.TrimSpace(loc.City)
	a.CitySubdivision = strings.TrimSpace(loc.CitySubdivision)
	a.Street = strings.TrimSpace(loc.Street)
	a.HouseNumber = strings.TrimSpace(loc.HouseNumber)
	a.BuildingName = strings.TrimSpace(loc.Object.Name)
	a.BuildingPlanNumber = stripPlanPrefix(strings.TrimSpace(loc.Object.PlanNumber))
	if loc.Coordinates != nil {
		parsePoint(&a, strings.TrimSpace(*loc.Coordinates), logger)
	}

	for _, em := range doc.Resources {
		a.Resources.Add(Resource{
			Organization:      strings.TrimSpace(em.Organization),
			Locality:          strings.TrimSpace(em.Locality),
			LocalitySuffix:    strings.TrimSpace(em.LocalitySuffix),
			UnitType:          strings.TrimSpace(em.UnitType),
			OrderingCode:      strings.TrimSpace(em.OrderingCode),
			SpokenDesignation: strings.TrimSpace(em.SpokenDesignation),
		})
	}

	return a, nil
}

// normalizeEscalation maps the "no escalation" placeholder "-" to empty.
func normalizeEscalation(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" {
		return ""
	}
	return s
}

// stripPlanPrefix drops a bracketed object name in front of a plan number.
func stripPlanPrefix(s string) string {
	if m := xmlPlanNumberRe.FindStringSubmatch(s); m != nil {
		return m[2]
	}
	return s
}

// parsePoint sets lon/lat from "POINT (<lon> <lat>)". On failure the
// coordinates keep their previous values.
func parsePoint(a *Alarm, text string, logger *slog.Logger) {
	m := xmlPointRe.FindStringSubmatch(text)
	if m == nil {
		logger.Warn("unknown coordinate format", "value", text)
		return
	}
	lon, errLon := strconv.ParseFloat(m[1], 64)
	lat, errLat := strconv.ParseFloat(m[2], 64)
	if errLon != nil || errLat != nil {
		logger.Warn("unknown coordinate format", "value", text)
		return
	}
	a.Lon = lon
	a.Lat = lat
}
