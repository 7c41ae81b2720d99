package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
	"github.com/couchcryptid/alarm-display/internal/pipeline"
)

const (
	telegramWolfsgraben = "21-12-17 11:55:10 LG Reichswalde Gebäudesteuerung" +
		" #K01;N5175638E0611815; *40004*B2 Kaminbrand**Kleve*" +
		"Reichswalde*Wolfsgraben*11**"
	telegramWald = "16-12-17 18:55:10 LG Reichswalde Gebäudesteuerung" +
		" #K01;N5173170E0606900; *40005*H1 Hilfeleistung*" +
		"Eichhörnchen auf Baum*Kleve*Reichswalde*" +
		"Grunewaldstrasse***Waldweg C"
	xmlWolfsgraben = `<daten>
  <einsatz>
    <timestamp>20171221105600</timestamp>
    <einsatznummer>1170040004</einsatznummer>
    <einsatzart>B</einsatzart>
    <einsatzstichwort>2</einsatzstichwort>
    <diagnose>Schornsteinbrand</diagnose>
    <besonderheit>keine Personen mehr im Gebäude</besonderheit>
    <meldender>Müller</meldender>
  </einsatz>
  <einsatzort><ort>Kleve</ort><strasse>Wolfsgraben</strasse><hausnummer>11</hausnummer></einsatzort>
  <einsatzmittel>
    <em><em_organisation>FW</em_organisation><em_ort>KLV</em_ort><em_ort_zusatz>05</em_ort_zusatz>
      <em_typ>LF10</em_typ><em_ordnungskennung>1</em_ordnungskennung></em>
  </einsatzmittel>
</daten>`
)

// --- mocks ---

type mockExtractor struct {
	payloads []domain.RawPayload
	errs     []error
	index    atomic.Int64
}

func (m *mockExtractor) Extract(ctx context.Context) (domain.RawPayload, error) {
	i := int(m.index.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return domain.RawPayload{}, m.errs[i]
	}
	if i >= len(m.payloads) {
		// block until context cancelled to simulate waiting for payloads
		<-ctx.Done()
		return domain.RawPayload{}, ctx.Err()
	}
	return m.payloads[i], nil
}

type mockLoader struct {
	err     error
	updates []domain.Update
}

func (m *mockLoader) Load(_ context.Context, update domain.Update) error {
	m.updates = append(m.updates, update)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(ext pipeline.Extractor, sinks ...pipeline.Sink) *pipeline.Pipeline {
	tfm := pipeline.NewTransformer(domain.DefaultOptions(), nil, discardLogger())
	return pipeline.New(ext, tfm, sinks, domain.DefaultOptions(), domain.UnitTable{}, discardLogger(), newTestMetrics())
}

func pagerPayload(text string) domain.RawPayload {
	return domain.RawPayload{Kind: domain.SourcePager, Data: []byte(text), Origin: "serial"}
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_MergesMatchingPayloads(t *testing.T) {
	ext := &mockExtractor{payloads: []domain.RawPayload{
		pagerPayload(telegramWolfsgraben),
		{Kind: domain.SourceXML, Data: []byte(xmlWolfsgraben), Origin: "imap"},
	}}
	ldr := &mockLoader{}
	p := newPipeline(ext, pipeline.Sink{Name: "test", Loader: ldr})

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.updates, 2)
	first, second := ldr.updates[0], ldr.updates[1]

	assert.True(t, first.New)
	assert.False(t, second.New)
	assert.NotEmpty(t, first.Incident.ID)
	assert.Equal(t, first.Incident.ID, second.Incident.ID)
	assert.Equal(t, domain.SourceXML, second.Payload.Kind)

	merged := second.Incident.Alarm
	assert.Equal(t, "1170040004", merged.Number)
	assert.Equal(t, "Kaminbrand", merged.Diagnosis, "first writer wins")
	assert.Equal(t, "Müller", merged.ReporterName)
	assert.Equal(t, 1, merged.Resources.Len())
	assert.Equal(t, []domain.SourceKind{domain.SourcePager, domain.SourceXML}, second.View.Sources)
	assert.Equal(t, []domain.Conflict{{Field: "diagnosis", Current: "Kaminbrand", Incoming: "Schornsteinbrand"}},
		second.Incident.Conflicts)

	// The first update is a snapshot and must not see the merge.
	assert.Equal(t, "40004", first.Incident.Alarm.Number)
	assert.Equal(t, 0, first.Incident.Alarm.Resources.Len())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_NonMatchingStartsNewIncident(t *testing.T) {
	ext := &mockExtractor{payloads: []domain.RawPayload{
		pagerPayload(telegramWolfsgraben),
		pagerPayload(telegramWald),
	}}
	ldr := &mockLoader{}
	p := newPipeline(ext, pipeline.Sink{Name: "test", Loader: ldr})

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.updates, 2)
	assert.True(t, ldr.updates[1].New)
	assert.NotEqual(t, ldr.updates[0].Incident.ID, ldr.updates[1].Incident.ID)

	view, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "40005", view.Alarm.Number)
	assert.Equal(t, "H1 Hilfeleistung", view.Title)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := newPipeline(&mockExtractor{}, pipeline.Sink{Name: "test", Loader: ldr})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.updates)
}

func TestPipeline_Run_MalformedPayloadIsDiscarded(t *testing.T) {
	ext := &mockExtractor{payloads: []domain.RawPayload{
		{Kind: domain.SourceXML, Data: []byte("<kaputt")},
		{Kind: domain.SourceJSON, Data: []byte(`{"einsatznummer":"1"}`)},
		{Kind: "fax", Data: []byte("x")},
	}}
	ldr := &mockLoader{}
	p := newPipeline(ext, pipeline.Sink{Name: "test", Loader: ldr})

	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.updates)
	assert.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.Current()
	assert.False(t, ok)
}

func TestPipeline_Run_SinkErrorDoesNotStopOthers(t *testing.T) {
	failing := &mockLoader{err: errors.New("broker down")}
	ok := &mockLoader{}
	ext := &mockExtractor{payloads: []domain.RawPayload{pagerPayload(telegramWolfsgraben)}}
	p := newPipeline(ext,
		pipeline.Sink{Name: "failing", Loader: failing},
		pipeline.Sink{Name: "ok", Loader: ok},
	)

	runFor(t, p, 300*time.Millisecond)

	assert.Len(t, failing.updates, 1)
	assert.Len(t, ok.updates, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RetriesAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		errs:     []error{errors.New("transient")},
		payloads: []domain.RawPayload{{}, pagerPayload(telegramWolfsgraben)},
	}
	ldr := &mockLoader{}
	p := newPipeline(ext, pipeline.Sink{Name: "test", Loader: ldr})

	runFor(t, p, time.Second)

	require.Len(t, ldr.updates, 1)
	assert.Equal(t, "40004", ldr.updates[0].Incident.Alarm.Number)
}

func TestPipeline_Run_UsesPackageClock(t *testing.T) {
	now := time.Date(2017, 12, 21, 10, 55, 12, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	ldr := &mockLoader{}
	p := newPipeline(&mockExtractor{payloads: []domain.RawPayload{pagerPayload(telegramWolfsgraben)}},
		pipeline.Sink{Name: "test", Loader: ldr})

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.updates, 1)
	assert.True(t, now.Equal(ldr.updates[0].Incident.Started))
	assert.True(t, now.Equal(ldr.updates[0].View.Updated))
}

func TestPipeline_Current_IsSnapshot(t *testing.T) {
	ldr := &mockLoader{}
	p := newPipeline(&mockExtractor{payloads: []domain.RawPayload{pagerPayload(telegramWolfsgraben)}},
		pipeline.Sink{Name: "test", Loader: ldr})

	_, ok := p.Current()
	assert.False(t, ok, "idle before the first payload")

	runFor(t, p, 300*time.Millisecond)

	got, ok := p.Current()
	require.True(t, ok)
	if diff := cmp.Diff(ldr.updates[0].View.Title, got.Title); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}
	got.Alarm.Number = "changed"
	again, _ := p.Current()
	assert.Equal(t, "40004", again.Alarm.Number)
}

func TestAlarmTransformer_Transform(t *testing.T) {
	tfm := pipeline.NewTransformer(domain.DefaultOptions(), nil, discardLogger())

	a, err := tfm.Transform(context.Background(), pagerPayload(telegramWolfsgraben))
	require.NoError(t, err)
	assert.Equal(t, "B2 Kaminbrand", a.Title())

	_, err = tfm.Transform(context.Background(), domain.RawPayload{Kind: domain.SourceJSON, Data: []byte("nope")})
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

type stubGeocoder struct{ calls int }

func (s *stubGeocoder) ForwardGeocode(context.Context, string, string) (domain.GeocodingResult, error) {
	s.calls++
	return domain.GeocodingResult{Lat: 51.73170, Lon: 6.06900}, nil
}

func TestAlarmTransformer_GeocodesMissingCoordinates(t *testing.T) {
	geo := &stubGeocoder{}
	tfm := pipeline.NewTransformer(domain.DefaultOptions(), geo, discardLogger())

	text := "16-12-17 18:55:10 LG Reichswalde *40005*H1 Hilfeleistung**Kleve*Reichswalde*Grunewaldstrasse***"
	a, err := tfm.Transform(context.Background(), pagerPayload(text))
	require.NoError(t, err)

	assert.Equal(t, 1, geo.calls)
	assert.InDelta(t, 51.73170, a.Lat, 1e-9)
}
