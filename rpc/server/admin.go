package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	gometrics "github.com/rcrowley/go-metrics"
)

// connInfo describes a live connection on the admin endpoint
type connInfo struct {
	ID       uint64 `json:"id"`
	Remote   string `json:"remote"`
	State    string `json:"state"`
	Requests uint64 `json:"requests"`
	Since    string `json:"since"`
}

// NewAdminHandler returns the router of the admin endpoint:
//
//	GET /healthz            200 while serving, 503 once a stop was requested
//	GET /metrics            prometheus metrics of the server and the process
//	GET /debug/stats        dispatch latencies as JSON
//	GET /debug/connections  live connections as JSON
func NewAdminHandler(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.coordinator.Stopped() {
			http.Error(w, "stopping", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		s.metrics.set.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})

	r.Get("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		gometrics.WriteJSONOnce(s.dispatcher.Stats(), w)
	})

	r.Get("/debug/connections", func(w http.ResponseWriter, _ *http.Request) {
		conns := make([]connInfo, 0, s.conns.Size())
		s.conns.Range(func(_ uint64, h *handler) bool {
			conns = append(conns, h.info())
			return true
		})
		sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(conns); err != nil {
			Logger.Warningf("failed to encode connections: %v", err)
		}
	})

	return r
}
