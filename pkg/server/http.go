package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codesync-dev/codesync/pkg/middleware"
	"github.com/codesync-dev/codesync/pkg/protocol"
	"github.com/codesync-dev/codesync/pkg/sandbox"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.HandleWebSocket)

	// The WebSocket endpoint stays outside the instrumented group: its
	// requests live for the whole connection and would swamp the latency
	// histograms.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Metrics(middleware.WithRegistry(s.config.Registry)))
		r.Use(middleware.Tracing())
		r.Post("/execute", s.handleExecute)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"activeSessions":  stats.Active,
		"sessionsCreated": stats.TotalCreated,
		"sessionsRemoved": stats.TotalRemoved,
	})
}

// handleExecute runs a one-shot code execution. Sandbox faults (timeouts,
// runtime errors) are reported inside a 200 response; only malformed requests
// get an error status.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req protocol.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}
	if !s.executor.Supported(req.Language) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported language %q (supported: %s)",
			req.Language, strings.Join(s.executor.Languages(), ", ")))
		return
	}

	res := s.executor.Execute(r.Context(), req.Source, req.Language)

	outcome := "ok"
	if res.Fault != sandbox.FaultNone {
		outcome = string(res.Fault)
	}
	s.metrics.executionsTotal.WithLabelValues(outcome).Inc()
	s.metrics.executionDuration.Observe(res.Duration.Seconds())

	writeJSON(w, http.StatusOK, protocol.ExecuteResponse{
		Success:   res.OK,
		Output:    res.Stdout,
		Error:     res.Stderr,
		ElapsedMs: res.Duration.Milliseconds(),
		Simulated: res.Simulated,
		SessionID: req.SessionID,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Minting is just identifier reservation; the session itself is
	// created by the first join so empty reservations never need reaping.
	writeJSON(w, http.StatusCreated, protocol.CreateSessionResponse{ID: s.store.Mint()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	snap := sess.Snapshot()
	participants := snap.Participants
	if participants == nil {
		participants = []protocol.Participant{}
	}
	writeJSON(w, http.StatusOK, protocol.SessionInfo{
		ID:           snap.ID,
		Doc:          snap.Doc,
		Language:     snap.Language,
		Participants: participants,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.HTTPError{Error: message})
}
