// Package api exposes the tool registry over HTTP and mounts the admin
// debug routes.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/plantops/maintwatch/internal/monitoring"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/tools"
)

// Server dispatches tool calls and serves health and admin endpoints.
type Server struct {
	DB       *store.DB
	Registry map[string]tools.Func
}

// NewServer builds a Server for the given dependencies.
func NewServer(db *store.DB, deps *tools.Deps) *Server {
	return &Server{
		DB:       db,
		Registry: tools.Registry(deps),
	}
}

// Routes returns the fully wired handler.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/tools/", s.handleTool)
	s.DB.AttachAdminRoutes(mux)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleTool runs POST /api/tools/{name} with a JSON parameter object body
// (an empty body is an empty parameter set).
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error": "tool calls must be POST",
		})
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/tools/")
	fn, ok := s.Registry[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": fmt.Sprintf("unknown tool %q", name),
		})
		return
	}

	params := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("invalid JSON body: %v", err),
		})
		return
	}

	result, err := fn(r.Context(), params)
	if err != nil {
		monitoring.Logf("api: tool %s failed: %v", name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		monitoring.Logf("api: failed to encode response: %v", err)
	}
}
