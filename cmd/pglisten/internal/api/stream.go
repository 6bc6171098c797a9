package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/model"
)

const streamBuffer = 64

// StreamMessage is one websocket frame.
type StreamMessage struct {
	Type         string              `json:"type"` // "hello" or "notification"
	ClientID     string              `json:"clientId,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
}

type streamClient struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]bool // empty means every channel
}

func (c *streamClient) wants(channel string) bool {
	return len(c.channels) == 0 || c.channels[channel]
}

func (c *streamClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Stream fans received notifications out to websocket clients.
// Clients may restrict the feed with repeated ?channel= query parameters.
// A client that cannot keep up is disconnected.
type Stream struct {
	upgrader websocket.Upgrader
	logger   pglisten.Logger

	mu      sync.RWMutex
	clients map[string]*streamClient
}

// NewStream creates an empty Stream. Attach it to a session with Attach.
func NewStream(logger pglisten.Logger) *Stream {
	if logger == nil {
		logger = &pglisten.NoopLogger{}
	}
	return &Stream{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]*streamClient),
	}
}

// Attach subscribes the stream to bus.
func (s *Stream) Attach(bus *pglisten.EventBus) *pglisten.Handle {
	return bus.OnNotification(s.Broadcast)
}

// ServeHTTP upgrades the request and registers the client.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	c := &streamClient{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, streamBuffer),
		channels: make(map[string]bool),
	}
	for _, ch := range r.URL.Query()["channel"] {
		c.channels[ch] = true
	}

	hello, _ := json.Marshal(StreamMessage{Type: "hello", ClientID: c.id})
	c.send <- hello

	go c.writePump()
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Debugf("Stream client %s connected from %s", c.id, r.RemoteAddr)

	// Reads only detect the peer going away.
	go func() {
		defer s.remove(c.id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends n to every interested client.
func (s *Stream) Broadcast(n model.Notification) {
	data, err := json.Marshal(StreamMessage{Type: "notification", Notification: &n})
	if err != nil {
		s.logger.Errorf("Failed to encode notification on %q: %v", n.Channel, err)
		return
	}

	// Sends happen under the read lock so remove cannot close a channel mid-send.
	var slow []string
	s.mu.RLock()
	for _, c := range s.clients {
		if !c.wants(n.Channel) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c.id)
		}
	}
	s.mu.RUnlock()

	for _, id := range slow {
		s.logger.Warnf("Stream client %s too slow, disconnecting", id)
		s.remove(id)
	}
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *Stream) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*streamClient)
	s.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

func (s *Stream) remove(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if ok {
		close(c.send)
		s.logger.Debugf("Stream client %s disconnected", id)
	}
}
