package scan

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/banshee-data/layerscan/internal/monitoring"
)

// WebServer exposes the HTTP monitoring interface: a health check and a
// JSON view of the acquisition counters and session state.
type WebServer struct {
	address   string
	stats     *SessionStats
	stateFunc func() string
	server    *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Stats   *SessionStats
	// StateFunc reports the session lifecycle state for the status
	// endpoint; may be nil.
	StateFunc func() string
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		stats:     config.Stats,
		stateFunc: config.StateFunc,
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

func (ws *WebServer) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/api/scan/stats", ws.handleStats)
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	State string   `json:"state"`
	Stats Snapshot `json:"stats"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}
	if ws.stateFunc != nil {
		resp.State = ws.stateFunc()
	}
	if ws.stats != nil {
		resp.Stats = ws.stats.GetSnapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		monitoring.Logf("stats endpoint: encode: %v", err)
	}
}

// Handler returns the route handler, for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start runs the HTTP server until ctx is cancelled, then shuts it
// down with a short grace period.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- ws.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return ws.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
