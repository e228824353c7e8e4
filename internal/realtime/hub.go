// Package realtime pushes refresh notifications to browsers watching a project.
package realtime

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/abricot-app/abricot/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Event is the payload sent to subscribers.
type Event struct {
	Type      string `json:"type"`
	Resource  string `json:"resource,omitempty"`
	ProjectID uint   `json:"project_id"`
}

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(fn func(*websocket.Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return fn(c.conn)
}

type Hub struct {
	mu       sync.RWMutex
	projects map[uint]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub accepts upgrades only from the listed origins. Requests without an
// Origin header, such as non-browser clients, are accepted.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		projects: make(map[uint]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger.Component("realtime"),
	}
}

// Subscribers reports how many connections watch the project.
func (h *Hub) Subscribers(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

// BroadcastRefresh tells every subscriber of the project to reload resource.
// Failed connections are dropped.
func (h *Hub) BroadcastRefresh(projectID uint, resource string) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.projects[projectID]))
	for c := range h.projects[projectID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	event := Event{Type: "refresh", Resource: resource, ProjectID: projectID}
	for _, c := range clients {
		err := c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(event) })
		if err != nil {
			h.logger.Debug("Dropping subscriber after failed broadcast", "project_id", projectID, "error", err)
			h.remove(projectID, c)
		}
	}
}

// ServeWS upgrades the request and blocks until the connection closes.
// The caller must have authorized access to the project.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, projectID uint) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "project_id", projectID, "error", err)
		return
	}

	c := &client{conn: conn}
	h.add(projectID, c)
	defer h.remove(projectID, c)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	welcome := Event{Type: "connected", ProjectID: projectID}
	if err := c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(welcome) }); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go h.ping(c, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket closed unexpectedly", "project_id", projectID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) ping(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(func(conn *websocket.Conn) error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projects[projectID] == nil {
		h.projects[projectID] = make(map[*client]struct{})
	}
	h.projects[projectID][c] = struct{}{}
}

func (h *Hub) remove(projectID uint, c *client) {
	h.mu.Lock()
	clients, ok := h.projects[projectID]
	if ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.projects, projectID)
		}
	}
	h.mu.Unlock()

	_ = c.conn.Close()
}
