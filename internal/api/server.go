// Package api exposes the decision engine over HTTP.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"trafficctl/internal/engine"
	"trafficctl/internal/metrics"
)

// Server routes HTTP requests to the decision engine.
type Server struct {
	engine *engine.Engine
	set    *metrics.Set
	router *mux.Router
}

func NewServer(eng *engine.Engine, set *metrics.Set) *Server {
	s := &Server{engine: eng, set: set, router: mux.NewRouter()}

	s.router.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/status/{target}", s.handleTargetStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodGet)
	s.router.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	s.router.HandleFunc("/alerts/{id}/ack", s.handleAcknowledge).Methods(http.MethodPost)
	s.router.HandleFunc("/targets", s.handleTargets).Methods(http.MethodGet)
	s.router.Handle("/metrics", set.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics/snapshot", s.handleMetricsSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "missing required field: command")
		return
	}

	result := s.engine.Submit(r.Context(), req.Command)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["target"]

	target, ok := s.engine.TargetStatus(name)
	if !ok {
		writeError(w, http.StatusNotFound, "no such target: "+name)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := s.engine.Recommendations()
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"count":           len(recs),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Alerts())
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !s.engine.Acknowledge(id) {
		writeError(w, http.StatusNotFound, "no such alert: "+id)
		return
	}
	log.Printf("[API] Alert %s acknowledged", id)
	writeJSON(w, http.StatusOK, map[string]string{"acknowledged": id})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Targets())
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.MetricsSnapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.engine.Uptime().Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
