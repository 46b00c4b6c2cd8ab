package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/service"
	"github.com/wricardo/volley-relay/transport/websocket"
)

// maxBodyBytes bounds REST request bodies
const maxBodyBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.MatchService
	hub     *websocket.Hub
	router  *mux.Router
	handler http.Handler
	origins []string
}

// NewServer creates a new API server. origins lists the browser origins
// allowed by CORS; "*" allows any.
func NewServer(matchService service.MatchService, hub *websocket.Hub, origins []string) *Server {
	s := &Server{
		service: matchService,
		hub:     hub,
		router:  mux.NewRouter(),
		origins: origins,
	}

	s.setupRoutes()
	s.handler = s.cors(s.router)
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Server
	api.HandleFunc("/server/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/server/connections", s.handleConnections).Methods("GET")

	// Matches (fixed paths must be before the {id} pattern)
	api.HandleFunc("/match/validate-pin", s.handleValidatePin).Methods("POST")
	api.HandleFunc("/match/list", s.handleListMatches).Methods("GET")
	api.HandleFunc("/match/game/{gameNumber}", s.handleGameNumber).Methods("GET")
	api.HandleFunc("/match/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/match/{id}", s.handleUpdateMatch).Methods("PATCH")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Mount attaches h at path, for surfaces built outside this package
func (s *Server) Mount(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondServiceError maps service errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	sentinel := service.ErrRequestFailed
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status, sentinel = http.StatusBadRequest, service.ErrInvalidRequest
	case errors.Is(err, service.ErrNotFound):
		status, sentinel = http.StatusNotFound, service.ErrNotFound
	}
	respondError(w, status, strings.TrimPrefix(err.Error(), sentinel.Error()+": "))
}

// Server Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"status":      status.Status,
		"connections": status.Connections,
		"rooms":       status.Rooms,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*service.Status
	}{true, status})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Connections(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(report.Clients),
		"clients": report.Clients,
		"byRole":  report.ByRole,
		"rooms":   report.Rooms,
	})
}

// Match Handlers

func (s *Server) handleValidatePin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pin     match.FlexString `json:"pin"`
		Type    string           `json:"type"`
		PinType string           `json:"pinType,omitempty"` // Older tablets send pinType
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = req.PinType
	}
	if req.Pin == "" || req.Type == "" {
		respondError(w, http.StatusBadRequest, "pin and type are required")
		return
	}

	result, err := s.service.ValidatePin(r.Context(), req.Pin.String(), req.Type)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"matchId": result.MatchID,
		"pinType": result.PinType,
		"match":   result.Match,
		"source":  result.Source,
	})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.ListMatches(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	result, err := s.service.GetMatch(r.Context(), vars["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondMatch(w, result)
}

func (s *Server) handleGameNumber(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	result, err := s.service.FindByGameNumber(r.Context(), vars["gameNumber"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondMatch(w, result)
}

func (s *Server) handleUpdateMatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Accept both a bare object and {"updates": {...}}
	var wrapped struct {
		Updates json.RawMessage `json:"updates"`
	}
	if json.Unmarshal(body, &wrapped) == nil && len(wrapped.Updates) > 0 {
		body = wrapped.Updates
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.UpdateMatch(r.Context(), vars["id"], body)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondMatch(w, result)
}

func respondMatch(w http.ResponseWriter, result *service.MatchResult) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"matchId": result.MatchID,
		"match":   result.Match,
		"source":  result.Source,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "WebSocket relay is not running")
		return
	}
	s.hub.ServeWS(w, r)
}
