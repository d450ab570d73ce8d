package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes chain health and Prometheus metrics over HTTP.
//
//	GET /health                 aggregate status, 503 when critical
//	GET /health/detailed        full HealthReport
//	GET /health/chains/{chain}  one chain's ChainHealth, 404 when unknown
//	GET /metrics                Prometheus exposition
type Server struct {
	monitor *Monitor
	http    *http.Server
}

// NewServer builds the server for the given port. It does not listen until Start.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.serveStatus)
	mux.HandleFunc("GET /health/detailed", s.serveReport)
	mux.HandleFunc("GET /health/chains/{chain}", s.serveChain)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routes without a listener.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start blocks serving requests. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error { return s.http.ListenAndServe() }

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error { return s.http.Shutdown(ctx) }

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	status := Aggregate(s.monitor.CheckHealth(r.Context()))
	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]SystemStatus{"status": status})
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Report(r.Context()))
}

func (s *Server) serveChain(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(strings.TrimSpace(r.PathValue("chain")))
	chain, ok := s.monitor.CheckHealth(r.Context())[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown chain"})
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Health response write failed", "error", err)
	}
}
