package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wricardo/maze-race/game/lobby"
	"github.com/wricardo/maze-race/game/service"
	"github.com/wricardo/maze-race/game/session"
	"github.com/wricardo/maze-race/transport/websocket"
)

// RoomService is the read model the API serves
type RoomService interface {
	OpenRooms(ctx context.Context) ([]session.RoomListing, error)
	RoomSnapshot(ctx context.Context, roomID string) (*lobby.Snapshot, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// Server represents the REST API server
type Server struct {
	rooms  RoomService
	hub    *websocket.Hub
	router *mux.Router
}

// NewServer creates a new API server
func NewServer(rooms RoomService, hub *websocket.Hub) *Server {
	s := &Server{
		rooms:  rooms,
		hub:    hub,
		router: mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")

	// Server
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// serviceError maps read-model errors to a status code
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrServerStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.OpenRooms(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["id"]

	snap, err := s.rooms.RoomSnapshot(r.Context(), roomID)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rooms.Stats(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"connections": s.hub.Count(),
	})
}
