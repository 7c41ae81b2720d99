package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/alarm-display/internal/adapter/http"
	"github.com/couchcryptid/alarm-display/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockIncidents struct {
	view domain.View
	ok   bool
}

func (m *mockIncidents) Current() (domain.View, bool) { return m.view, m.ok }

func newTestServer(readyErr error, incidents *mockIncidents) *httpadapter.Server {
	if incidents == nil {
		incidents = &mockIncidents{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, incidents, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("pipeline has not processed any payloads yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIncidentReturns404WhenIdle(t *testing.T) {
	srv := newTestServer(nil, &mockIncidents{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/incident", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "idle", body["status"])
}

func TestIncidentReturnsActiveView(t *testing.T) {
	view := domain.View{
		ID:           "0b6f5d3e-2f7c-4c1b-9d7e-3f0e1d2c3b4a",
		Started:      time.Date(2017, 12, 21, 10, 55, 12, 0, time.UTC),
		Alarm:        domain.Alarm{Number: "1170040004", Type: "B", Keyword: "2", Diagnosis: "Kaminbrand"},
		Title:        "B2 Kaminbrand",
		Image:        "feuer",
		AlertedUnits: "FW KLV05 LF10 1",
		Sources:      []domain.SourceKind{domain.SourcePager, domain.SourceXML},
	}
	srv := newTestServer(nil, &mockIncidents{view: view, ok: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/incident", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got domain.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, view.ID, got.ID)
	assert.Equal(t, "B2 Kaminbrand", got.Title)
	assert.Equal(t, "1170040004", got.Alarm.Number)
	assert.Equal(t, view.Sources, got.Sources)
}

func TestIncidentRejectsPost(t *testing.T) {
	srv := newTestServer(nil, &mockIncidents{ok: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/incident", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
