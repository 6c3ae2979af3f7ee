// Package api fronts the engine with a small JSON HTTP surface plus a
// websocket event stream. The engine itself is single-writer; the server
// serializes all mutating calls behind one mutex.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/JuggernautLabs/storyforge/internal/engine"
	"github.com/JuggernautLabs/storyforge/internal/events"
	"github.com/JuggernautLabs/storyforge/internal/storage/postgres"
)

// EventHistory serves persisted events beyond the in-memory ring buffer.
type EventHistory interface {
	Query(limit int) ([]postgres.EventRow, error)
}

// Server exposes one engine instance over HTTP.
type Server struct {
	mu      sync.Mutex
	engine  *engine.Engine
	bus     *events.Bus
	store   engine.Store // optional; session save/load disabled when nil
	history EventHistory // optional; /events/history disabled when nil
}

// SetEventHistory attaches a durable event history source.
func (s *Server) SetEventHistory(h EventHistory) {
	s.history = h
}

// NewServer creates a server around an engine and its bus. store may be nil.
func NewServer(eng *engine.Engine, bus *events.Bus, store engine.Store) *Server {
	return &Server{engine: eng, bus: bus, store: store}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}

// statusFor maps engine errors to HTTP statuses. Precondition violations are
// conflicts the caller can resolve by re-reading state; everything else is a
// server-side failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownChoice):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, engine.ErrGenerationInFlight),
		errors.Is(err, engine.ErrCannotAfford),
		errors.Is(err, engine.ErrGameOver):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "storyd",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":      s.engine.State(),
		"validation": s.engine.Validate(),
	})
}

func (s *Server) graphHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.engine.Graph()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": g.Nodes(),
		"edges": g.Edges(),
	})
}

func (s *Server) choicesHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"choices": s.engine.CurrentChoices(),
	})
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	choices, err := s.engine.RequestChoices(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"choices": choices,
	})
}

type SelectRequest struct {
	ChoiceID string `json:"choice_id"`
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ChoiceID == "" {
		writeError(w, http.StatusBadRequest, "choice_id required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.SelectChoice(r.Context(), req.ChoiceID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"state": s.engine.State(),
	})
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"state": s.engine.State(),
	})
}

func (s *Server) repairHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fixes := s.engine.AutoRepair()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"fixes":      fixes,
		"validation": s.engine.Validate(),
	})
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Persist(s.store); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) loadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Restore(s.store); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"state": s.engine.State(),
	})
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bus.Recent(0))
}

func (s *Server) eventsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "no event storage configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	rows, err := s.history.Query(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) debugExportHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.engine.ExportDebugData())
}

// Routes builds the HTTP mux. Operator endpoints mutate state and require an
// operator or admin role when auth is configured; the debug export is
// admin-only.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/state", s.stateHandler)
	mux.HandleFunc("/graph", s.graphHandler)
	mux.HandleFunc("/choices", s.choicesHandler)
	mux.HandleFunc("/choices/generate", s.generateHandler)
	mux.HandleFunc("/choices/select", s.selectHandler)
	mux.HandleFunc("/events", s.eventsHandler)
	mux.HandleFunc("/events/history", s.eventsHistoryHandler)
	mux.HandleFunc("/ws/events", s.wsEventsHandler)
	mux.HandleFunc("/operator/reset", RequireAnyRole(s.resetHandler))
	mux.HandleFunc("/operator/repair", RequireAnyRole(s.repairHandler))
	mux.HandleFunc("/operator/save", RequireAnyRole(s.saveHandler))
	mux.HandleFunc("/operator/load", RequireAnyRole(s.loadHandler))
	mux.HandleFunc("/debug/export", RequireAdmin(s.debugExportHandler))
	return mux
}

// ListenAndServe starts the API server on the given port, with TLS when
// configured. It blocks until the server exits.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	if IsTLSEnabled() {
		srv.TLSConfig = LoadTLSConfig()
		if srv.TLSConfig != nil {
			log.Printf("API listening on %s (TLS)\n", addr)
			return srv.ListenAndServeTLS("", "")
		}
		log.Printf("TLS configured but unusable, falling back to plain HTTP")
	}

	log.Printf("API listening on %s\n", addr)
	return srv.ListenAndServe()
}
