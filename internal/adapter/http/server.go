package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

// ReadinessChecker reports whether the service is ready to process files.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ImportLogReader fetches the stored import log for one record, newest
// entries first. Satisfied by *store.Store.
type ImportLogReader interface {
	ImportLog(ctx context.Context, recordnum int) ([]store.ImportLogEntry, error)
}

// Server exposes health, readiness, metrics, and import-log HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logs       ImportLogReader
	logger     *slog.Logger
}

// NewServer creates the operational HTTP server for the import service.
func NewServer(addr string, ready ReadinessChecker, logs ImportLogReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logs:   logs,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /importlog/{recordnum}", s.handleImportLog)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// importLogEntry is the wire shape of one import log row.
type importLogEntry struct {
	Datetime  time.Time `json:"datetime"`
	Recordnum int       `json:"recordnum"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
}

// handleImportLog returns a record's import log so staff can see why a file
// was or was not processed without database access.
func (s *Server) handleImportLog(w http.ResponseWriter, r *http.Request) {
	recordnum, err := strconv.Atoi(r.PathValue("recordnum"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recordnum must be an integer"})
		return
	}

	entries, err := s.logs.ImportLog(r.Context(), recordnum)
	if err != nil {
		s.logger.Error("import log lookup failed", "recordnum", recordnum, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "import log lookup failed"})
		return
	}

	out := make([]importLogEntry, len(entries))
	for i, e := range entries {
		out[i] = importLogEntry{
			Datetime:  e.Datetime,
			Recordnum: e.Recordnum,
			Message:   e.Message,
			Level:     e.Level,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
