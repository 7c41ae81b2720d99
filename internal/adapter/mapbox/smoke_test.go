//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, testMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Flutstraße 36", "47533 Kleve")
	require.NoError(t, err)

	assert.InDelta(t, 51.79, result.Lat, 0.05, "lat should be near Kleve")
	assert.InDelta(t, 6.14, result.Lon, 0.05, "lon should be near Kleve")
	assert.Contains(t, result.FormattedAddress, "Kleve")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_Unknown(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Qwxzyv 999", "Nirgendwo")
	require.NoError(t, err)
	assert.Less(t, result.Confidence, 0.9)
}
