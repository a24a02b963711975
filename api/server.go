package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/warmap/game/board"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/service"
	"github.com/wricardo/warmap/render"
	"github.com/wricardo/warmap/transport/websocket"
)

// ExportFilename is the download name of PNG exports
const ExportFilename = "war-map.png"

// Server represents the REST API server
type Server struct {
	service   service.MapService
	hub       *websocket.Hub
	router    *mux.Router
	staticDir string
	log       *logrus.Entry
}

// Option configures a Server
type Option func(*Server)

// WithStaticDir serves files from dir for every path outside /api and /ws
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// NewServer creates a new API server. hub may be nil.
func NewServer(mapService service.MapService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: mapService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     logrus.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Map management
	api.HandleFunc("/maps", s.handleCreateMap).Methods("POST")
	api.HandleFunc("/maps", s.handleListMaps).Methods("GET")
	api.HandleFunc("/maps/{id}", s.handleGetMap).Methods("GET")
	api.HandleFunc("/maps/{id}", s.handleDeleteMap).Methods("DELETE")
	api.HandleFunc("/maps/{id}/open", s.handleOpenMap).Methods("POST")

	// Editing
	api.HandleFunc("/maps/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/maps/{id}/place", s.handlePlace).Methods("POST")
	api.HandleFunc("/maps/{id}/clear", s.handleClear).Methods("POST")
	api.HandleFunc("/maps/{id}/click", s.handleClick).Methods("POST")
	api.HandleFunc("/maps/{id}/cells/{x:-?[0-9]+}/{y:-?[0-9]+}", s.handleDescribeCell).Methods("GET")
	api.HandleFunc("/maps/{id}/export.png", s.handleExport).Methods("GET")

	// Catalog and presets
	api.HandleFunc("/tiles", s.handleListTiles).Methods("GET")
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets/{name}", s.handleGetPreset).Methods("GET")
	api.HandleFunc("/presets/{name}", s.handleSavePreset).Methods("POST")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// respondServiceError maps service errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMapNotFound), errors.Is(err, service.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrMapExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrPresetReadOnly):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidMapID),
		errors.Is(err, service.ErrInvalidPreset),
		errors.Is(err, grid.ErrOutOfBounds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Map Handlers

func (s *Server) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMapRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	info, err := s.service.CreateMap(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.service.ListMaps(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(maps) {
			maps = maps[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(maps),
		"maps":  maps,
	})
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetMap(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if s.hub != nil {
		info.Viewers = s.hub.ClientCount(info.ID)
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleOpenMap(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.OpenMap(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["id"]

	if err := s.service.DeleteMap(r.Context(), mapID); err != nil {
		respondServiceError(w, err)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(board.NormalizeID(mapID), websocket.EventDeleted, nil)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Map %s deleted", mapID),
	})
}

// Editing Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Place(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Clear(r.Context(), mux.Vars(r)["id"], req.X, req.Y)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Click(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDescribeCell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	x, errX := strconv.Atoi(vars["x"])
	y, errY := strconv.Atoi(vars["y"])
	if errX != nil || errY != nil {
		respondError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}

	info, err := s.service.DescribeCell(r.Context(), vars["id"], x, y)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// handleExport renders the map as PNG. Query: cell (pixels per cell),
// labels=false, grid=false, bg (color), download=1 (attachment).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := render.DefaultOptions()
	if cellStr := query.Get("cell"); cellStr != "" {
		cell, err := strconv.Atoi(cellStr)
		if err != nil || cell <= 0 {
			respondError(w, http.StatusBadRequest, "cell must be a positive integer")
			return
		}
		opts.CellSize = cell
	}
	if query.Get("labels") == "false" {
		opts.Labels = false
	}
	if query.Get("grid") == "false" {
		opts.GridLines = false
	}
	opts.Background = query.Get("bg")

	var buf bytes.Buffer
	if err := s.service.ExportPNG(r.Context(), mux.Vars(r)["id"], opts, &buf); err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if download := query.Get("download"); download == "1" || strings.EqualFold(download, "true") {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Catalog and Preset Handlers

func (s *Server) handleListTiles(w http.ResponseWriter, r *http.Request) {
	tiles, err := s.service.ListTiles(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tiles)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, presets)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		name = strings.TrimSuffix(name, ext)
	}

	preset, err := s.service.GetPreset(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, preset)
}

// handleSavePreset writes the preset in the body to <name>.json, or to the
// extension given in name
func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var preset config.Preset
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.SavePreset(r.Context(), name, &preset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket updates are disabled", http.StatusServiceUnavailable)
		return
	}

	mapID := r.URL.Query().Get("map")
	if mapID == "" {
		http.Error(w, "map parameter required", http.StatusBadRequest)
		return
	}

	// Verify map exists
	state, err := s.service.GetState(r.Context(), mapID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	s.hub.ServeWS(w, r, state.MapID, state)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
