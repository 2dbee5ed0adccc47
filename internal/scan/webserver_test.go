package scan

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebServerHealthz(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(WebServerConfig{Address: ":0"})
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestWebServerStats(t *testing.T) {
	t.Parallel()

	stats := NewSessionStats()
	stats.AddConnectAttempt()
	stats.AddSession()
	stats.AddFrame(0, &ScanFrame{Echoes: []Echo{{Ranges: []float32{10}}}})
	stats.AddCloud()

	ws := NewWebServer(WebServerConfig{
		Address:   ":0",
		Stats:     stats,
		StateFunc: func() string { return "measuring" },
	})

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scan/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "measuring", resp.State)
	assert.Equal(t, int64(1), resp.Stats.ConnectAttempts)
	assert.Equal(t, int64(1), resp.Stats.Sessions)
	assert.Equal(t, int64(1), resp.Stats.Frames)
	assert.Equal(t, int64(1), resp.Stats.Clouds)
}

func TestWebServerStatsWithoutState(t *testing.T) {
	t.Parallel()

	ws := NewWebServer(WebServerConfig{Address: ":0"})
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scan/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.State)
}
