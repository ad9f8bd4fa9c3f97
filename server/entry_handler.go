package server

import (
	"encoding/json"
	"net/http"

	"MixGrid/logger"
	"MixGrid/model"

	"github.com/gorilla/mux"
)

// GetEntriesHandler lists a song's timeline entries ordered by start time.
func (h *APIHandler) GetEntriesHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	entries, err := h.entryRepo.ListBySong(r.Context(), song.ID)
	if err != nil {
		logger.Error("failed to list entries",
			logger.String("songId", song.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to load entries")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// CreateEntryHandler adds a timeline entry to a song. Validation mirrors
// the editor: 0 <= start < end <= song duration, known instrument type.
func (h *APIHandler) CreateEntryHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	var entry model.TimelineEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if entry.InstrumentType == "" {
		entry.InstrumentType = model.InstrumentTypes[0]
	}
	if !entry.InstrumentType.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown instrument type")
		return
	}
	if entry.StartTime < 0 || entry.StartTime >= entry.EndTime {
		respondError(w, http.StatusBadRequest, "Start time must be less than end time")
		return
	}
	if entry.EndTime > song.Duration {
		respondError(w, http.StatusBadRequest, "End time cannot be greater than song duration")
		return
	}

	entry.ID = ""
	entry.SongID = song.ID
	if err := h.entryRepo.Create(r.Context(), &entry); err != nil {
		logger.Error("failed to create entry",
			logger.String("songId", song.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to add timeline entry")
		return
	}

	respondJSON(w, http.StatusCreated, &entry)
}

// UpdateEntryHandler applies a partial update to an entry.
func (h *APIHandler) UpdateEntryHandler(w http.ResponseWriter, r *http.Request) {
	entry, song, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}

	var change model.EntryUpdate
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	next := *entry
	change.ApplyTo(&next)
	if !next.InstrumentType.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown instrument type")
		return
	}
	if next.StartTime < 0 || next.StartTime >= next.EndTime {
		respondError(w, http.StatusBadRequest, "Start time must be less than end time")
		return
	}
	if next.EndTime > song.Duration {
		respondError(w, http.StatusBadRequest, "End time cannot be greater than song duration")
		return
	}

	if err := h.entryRepo.Update(r.Context(), entry.ID, &change); err != nil {
		logger.Error("failed to update entry",
			logger.String("entryId", entry.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to update timeline entry")
		return
	}

	respondJSON(w, http.StatusOK, &next)
}

// DeleteEntryHandler removes one entry.
func (h *APIHandler) DeleteEntryHandler(w http.ResponseWriter, r *http.Request) {
	entry, _, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}

	if err := h.entryRepo.Delete(r.Context(), entry.ID); err != nil {
		logger.Error("failed to delete entry",
			logger.String("entryId", entry.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete timeline entry")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedEntry resolves the entry from the route and checks the requester
// owns its song.
func (h *APIHandler) ownedEntry(w http.ResponseWriter, r *http.Request) (*model.TimelineEntry, *model.Song, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, nil, false
	}

	entryID := mux.Vars(r)["id"]
	entry, err := h.entryRepo.GetByID(r.Context(), entryID)
	if err != nil {
		logger.Error("failed to load entry",
			logger.String("entryId", entryID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to load entry")
		return nil, nil, false
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "Entry not found")
		return nil, nil, false
	}

	song, err := h.loadSong(r.Context(), entry.SongID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load song")
		return nil, nil, false
	}
	if song == nil || song.UserID != userID {
		respondError(w, http.StatusForbidden, "Not your entry")
		return nil, nil, false
	}
	return entry, song, true
}
