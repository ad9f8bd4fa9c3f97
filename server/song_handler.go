package server

import (
	"context"
	"encoding/json"
	"net/http"

	"MixGrid/logger"
	"MixGrid/model"

	"github.com/gorilla/mux"
)

// GetSongsHandler lists the authenticated user's songs, newest first.
func (h *APIHandler) GetSongsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	songs, err := h.songRepo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list songs",
			logger.Int64("userId", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to load songs")
		return
	}
	respondJSON(w, http.StatusOK, songs)
}

// CreateSongHandler creates a song. Missing fields fall back to the
// defaults ("New Song", 300 seconds).
func (h *APIHandler) CreateSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var song model.Song
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&song); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if song.Duration < 0 {
		respondError(w, http.StatusBadRequest, "Duration must be positive")
		return
	}

	song.UserID = userID
	if err := h.songRepo.Create(r.Context(), &song); err != nil {
		logger.Error("failed to create song",
			logger.Int64("userId", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create song")
		return
	}

	logger.Info("song created",
		logger.String("songId", song.ID), logger.Int64("userId", userID))
	respondJSON(w, http.StatusCreated, &song)
}

// GetSongHandler returns one song with its timeline entries.
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	entries, err := h.entryRepo.ListBySong(r.Context(), song.ID)
	if err != nil {
		logger.Error("failed to list entries",
			logger.String("songId", song.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to load song data")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"song":    song,
		"entries": entries,
	})
}

// UpdateSongHandler updates title and duration, keeping any live editor
// session's duration bound in sync.
func (h *APIHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title"`
		Duration int    `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Duration <= 0 {
		respondError(w, http.StatusBadRequest, "Duration must be positive")
		return
	}

	song.Title = req.Title
	song.Duration = req.Duration
	if err := h.songRepo.Update(r.Context(), song); err != nil {
		logger.Error("failed to update song",
			logger.String("songId", song.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to save song")
		return
	}

	respondJSON(w, http.StatusOK, song)
}

// DeleteSongHandler deletes a song. The cascade is enforced here, not by
// the store: timeline entries go first, then the song row, then any live
// editor session is evicted.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	if err := h.entryRepo.DeleteBySong(r.Context(), song.ID); err != nil {
		logger.Error("failed to delete song entries",
			logger.String("songId", song.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}
	if err := h.songRepo.Delete(r.Context(), song.ID); err != nil {
		logger.Error("failed to delete song",
			logger.String("songId", song.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}

	if h.editors != nil {
		h.editors.Evict(r.Context(), song.ID)
	}

	logger.Info("song deleted", logger.String("songId", song.ID))
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedSong loads the song from the route and verifies the requester owns
// it. Writes the error response itself when it returns ok=false.
func (h *APIHandler) ownedSong(w http.ResponseWriter, r *http.Request) (*model.Song, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	songID := mux.Vars(r)["id"]
	song, err := h.loadSong(r.Context(), songID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load song")
		return nil, false
	}
	if song == nil {
		respondError(w, http.StatusNotFound, "Song not found")
		return nil, false
	}
	if song.UserID != userID {
		respondError(w, http.StatusForbidden, "Not your song")
		return nil, false
	}
	return song, true
}

func (h *APIHandler) loadSong(ctx context.Context, songID string) (*model.Song, error) {
	song, err := h.songRepo.GetByID(ctx, songID)
	if err != nil {
		logger.Error("failed to load song",
			logger.String("songId", songID), logger.ErrorField(err))
	}
	return song, err
}
