package server

import (
	"encoding/json"
	"net/http"

	"MixGrid/config"
	"MixGrid/core/editor"
	"MixGrid/logger"
	"MixGrid/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	songRepo  repository.SongRepository
	entryRepo repository.EntryRepository
	userRepo  repository.UserRepository
	editors   *editor.Manager
	cfg       *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	songRepo repository.SongRepository,
	entryRepo repository.EntryRepository,
	userRepo repository.UserRepository,
	editors *editor.Manager,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		songRepo:  songRepo,
		entryRepo: entryRepo,
		userRepo:  userRepo,
		editors:   editors,
		cfg:       cfg,
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
