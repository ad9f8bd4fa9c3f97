package editor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"MixGrid/logger"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection attached to an editor session.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	SongID   string
	UserID   int64
	Username string
}

// Hub fans editor events out to every client attached to a song's session.
type Hub struct {
	// song ID -> attached clients
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}

	// onEmpty fires after the last client of a song detaches, so the
	// session manager can close the session.
	onEmpty func(songID string)
}

type broadcastMessage struct {
	SongID  string
	Message []byte
}

// NewHub creates a hub. onEmpty may be nil.
func NewHub(onEmpty func(songID string)) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
		onEmpty:    onEmpty,
	}
}

// Run drives the hub's main loop until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastToSession(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop shuts the hub down and closes every client channel.
func (h *Hub) Stop() {
	close(h.done)
}

// Register attaches a client to its song's session.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister detaches a client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a message to every client of a song.
func (h *Hub) Broadcast(songID string, message []byte) {
	h.broadcast <- &broadcastMessage{SongID: songID, Message: message}
}

// BroadcastWSMessage marshals and broadcasts an envelope.
func (h *Hub) BroadcastWSMessage(songID string, msg *WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(songID, data)
	return nil
}

// ClientCount returns the number of clients attached to a song.
func (h *Hub) ClientCount(songID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[songID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.SongID] == nil {
		h.sessions[client.SongID] = make(map[*Client]bool)
	}
	h.sessions[client.SongID][client] = true

	logger.Info("editor client attached",
		logger.String("song", client.SongID),
		logger.Int64("user", client.UserID),
		logger.String("username", client.Username))
}

func (h *Hub) unregisterClient(client *Client) {
	empty := h.removeClient(client)

	logger.Info("editor client detached",
		logger.String("song", client.SongID),
		logger.Int64("user", client.UserID))

	if empty && h.onEmpty != nil {
		h.onEmpty(client.SongID)
	}
}

// removeClient detaches a client under the write lock and closes its send
// channel. Reports whether the client's song has no clients left.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[client.SongID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.sessions, client.SongID)
		return true
	}
	return false
}

func (h *Hub) broadcastToSession(msg *broadcastMessage) {
	h.mu.RLock()
	clients, ok := h.sessions[msg.SongID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		select {
		case client.Send <- msg.Message:
		default:
			// Stalled connection, drop it inline. Pushing it back through
			// the unregister channel would block the run loop on itself.
			if h.removeClient(client) && h.onEmpty != nil {
				h.onEmpty(client.SongID)
			}
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.sessions {
		for client := range clients {
			close(client.Send)
		}
	}
	h.sessions = make(map[string]map[*Client]bool)
}

// ReadPump reads frames from the connection, dispatching each message to
// handler, until the connection drops or ctx is done.
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(8192)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read error",
						logger.ErrorField(err),
						logger.String("song", c.SongID),
						logger.Int64("user", c.UserID))
				}
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("invalid editor message",
					logger.ErrorField(err),
					logger.String("song", c.SongID))
				continue
			}

			handler(ctx, c, &msg)
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce whatever else is queued.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues an envelope for this client only. A full buffer drops
// the message.
func (c *Client) SendMessage(msg *WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return nil
	}
}
