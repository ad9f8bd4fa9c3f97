package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"MixGrid/cache"
	"MixGrid/logger"
	"MixGrid/repository"
)

// Manager creates editor sessions on demand, one per open song, and closes
// them when their last client detaches.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	songs   repository.SongRepository
	entries repository.EntryRepository
	cache   *cache.EditorCache
	hub     *Hub

	canvasWidth  float64
	canvasHeight float64
	tickInterval time.Duration
}

// NewManager wires the manager and its hub together. The hub's onEmpty hook
// closes the session once nobody is attached.
func NewManager(songs repository.SongRepository, entries repository.EntryRepository,
	editorCache *cache.EditorCache, canvasWidth, canvasHeight float64, tickInterval time.Duration) *Manager {

	m := &Manager{
		sessions:     make(map[string]*Session),
		songs:        songs,
		entries:      entries,
		cache:        editorCache,
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
		tickInterval: tickInterval,
	}
	m.hub = NewHub(m.closeSession)
	return m
}

// Hub returns the websocket hub. The caller runs it.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Attach returns the session for a song, creating and loading it if no
// client had it open, and records the user's presence.
func (m *Manager) Attach(ctx context.Context, songID string, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[songID]; ok {
		m.recordPresence(ctx, songID, userID)
		return session, nil
	}

	song, err := m.songs.GetByID(ctx, songID)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, fmt.Errorf("song %s not found", songID)
	}

	session := NewSession(song, m.songs, m.entries, m.canvasWidth, m.canvasHeight,
		m.tickInterval, func(msg *WSMessage) {
			m.hub.Broadcast(songID, mustMarshal(msg))
		})
	if err := session.Open(ctx); err != nil {
		return nil, err
	}

	if m.cache != nil {
		if position, ok, err := m.cache.LoadPlaybackSnapshot(ctx, songID); err != nil {
			logger.Warn("playback snapshot load failed",
				logger.String("song", songID), logger.ErrorField(err))
		} else if ok {
			session.RestorePlayback(position)
		}
	}

	m.sessions[songID] = session
	m.recordPresence(ctx, songID, userID)
	logger.Info("editor session opened", logger.String("song", songID))
	return session, nil
}

// Detach removes the user's presence mark. The session itself is closed by
// the hub's onEmpty hook once the websocket detaches.
func (m *Manager) Detach(ctx context.Context, songID string, userID int64) {
	if m.cache == nil {
		return
	}
	if err := m.cache.RemovePresence(ctx, songID, userID); err != nil {
		logger.Warn("presence removal failed",
			logger.String("song", songID), logger.ErrorField(err))
	}
}

// Session returns the live session for a song, or nil.
func (m *Manager) Session(songID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[songID]
}

// Evict closes and forgets a song's session, used when the song is deleted.
func (m *Manager) Evict(ctx context.Context, songID string) {
	m.mu.Lock()
	session, ok := m.sessions[songID]
	delete(m.sessions, songID)
	m.mu.Unlock()

	if ok {
		session.Close()
	}
	if m.cache != nil {
		if err := m.cache.ClearSong(ctx, songID); err != nil {
			logger.Warn("editor cache clear failed",
				logger.String("song", songID), logger.ErrorField(err))
		}
	}
}

// closeSession runs when the last client of a song detaches: snapshot the
// cursor, stop the clock, forget the session.
func (m *Manager) closeSession(songID string) {
	m.mu.Lock()
	session, ok := m.sessions[songID]
	delete(m.sessions, songID)
	m.mu.Unlock()

	if !ok {
		return
	}

	position := session.PlaybackPosition()
	session.Close()

	if m.cache != nil {
		// closeSession runs on the hub loop; the snapshot save must not
		// hold broadcasts behind redis.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.cache.SavePlaybackSnapshot(ctx, songID, position); err != nil {
				logger.Warn("playback snapshot save failed",
					logger.String("song", songID), logger.ErrorField(err))
			}
		}()
	}
	logger.Info("editor session closed",
		logger.String("song", songID), logger.Float64("position", position))
}

func (m *Manager) recordPresence(ctx context.Context, songID string, userID int64) {
	if m.cache == nil {
		return
	}
	if err := m.cache.AddPresence(ctx, songID, userID); err != nil {
		logger.Warn("presence record failed",
			logger.String("song", songID), logger.ErrorField(err))
	}
}

func mustMarshal(msg *WSMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to marshal broadcast", logger.ErrorField(err))
		return []byte("{}")
	}
	return data
}
