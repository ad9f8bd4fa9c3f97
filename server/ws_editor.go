package server

import (
	"context"
	"net/http"

	"MixGrid/core/auth"
	"MixGrid/core/editor"
	"MixGrid/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EditorWSHandler attaches a client to a song's editor session over a
// websocket. Browsers cannot set headers on websocket requests, so the JWT
// arrives as a "token" query parameter.
func (h *APIHandler) EditorWSHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Missing token")
		return
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	songID := mux.Vars(r)["id"]
	song, err := h.loadSong(r.Context(), songID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load song")
		return
	}
	if song == nil {
		respondError(w, http.StatusNotFound, "Song not found")
		return
	}
	if song.UserID != claims.UserID {
		respondError(w, http.StatusForbidden, "Not your song")
		return
	}

	session, err := h.editors.Attach(r.Context(), songID, claims.UserID)
	if err != nil {
		logger.Error("editor attach failed",
			logger.String("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to open editor session")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	hub := h.editors.Hub()
	client := &editor.Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		SongID:   songID,
		UserID:   claims.UserID,
		Username: claims.Username,
	}
	hub.Register(client)

	go client.WritePump()

	// The new client gets the full snapshot before any incremental event.
	if err := client.SendMessage(session.Snapshot()); err != nil {
		logger.Warn("snapshot send failed", logger.ErrorField(err))
	}

	ctx := context.Background()
	client.ReadPump(ctx, func(ctx context.Context, c *editor.Client, msg *editor.WSMessage) {
		msg.UserID = c.UserID
		msg.SongID = c.SongID
		if live := h.editors.Session(c.SongID); live != nil {
			live.HandleMessage(ctx, msg)
		}
	})

	h.editors.Detach(context.Background(), songID, claims.UserID)
}
