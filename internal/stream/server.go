// Package stream publishes detector events to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/events"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/metrics"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

const (
	sendBuffer  = 256
	backlogSize = 64
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
)

// StatsFunc returns the current detection counters.
type StatsFunc func() models.DetectionStats

// Server fans events out to websocket clients on /ws and serves /health and
// /stats. New clients first receive the most recent events as one batch.
type Server struct {
	addr      string
	stats     StatsFunc
	server    *http.Server
	upgrader  websocket.Upgrader
	log       *logging.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	backlogMu sync.Mutex
	backlog   []*events.Event
}

// Client is one connected websocket peer.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// NewServer creates a stream server and starts its hub.
func NewServer(addr string, stats StatsFunc) *Server {
	s := &Server{
		addr:       addr,
		stats:      stats,
		log:        logging.StreamLogger(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards are served from other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.run()
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start serves HTTP until Stop. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("stream server listening", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.stopOnce.Do(func() { close(s.quit) })
	return err
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) run() {
	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			n := len(s.clients)
			s.mu.Unlock()
			metrics.StreamClients.Set(float64(n))
			s.log.Debug("client connected", "clients", n)

		case client := <-s.unregister:
			s.remove(client)

		case message := <-s.broadcast:
			s.mu.RLock()
			clients := make([]*Client, 0, len(s.clients))
			for client := range s.clients {
				clients = append(clients, client)
			}
			s.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					s.remove(client)
				}
			}

		case <-s.quit:
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()
			metrics.StreamClients.Set(0)
			return
		}
	}
}

// remove runs on the hub goroutine only, so send is closed exactly once.
func (s *Server) remove(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	close(client.send)
	n := len(s.clients)
	s.mu.Unlock()

	metrics.StreamClients.Set(float64(n))
	s.log.Debug("client disconnected", "clients", n)
}

// Broadcast queues an event for every client. It has the
// events.EventHandler signature and never blocks.
func (s *Server) Broadcast(event *events.Event) {
	data, err := event.JSON()
	if err != nil {
		s.log.Warn("failed to marshal event", "type", string(event.Type), logging.Err(err))
		return
	}

	s.backlogMu.Lock()
	s.backlog = append(s.backlog, event)
	if len(s.backlog) > backlogSize {
		s.backlog = s.backlog[len(s.backlog)-backlogSize:]
	}
	s.backlogMu.Unlock()

	select {
	case s.broadcast <- data:
	default:
		s.log.Warn("broadcast channel full, dropping event", "type", string(event.Type))
	}
}

func (s *Server) recent() []*events.Event {
	s.backlogMu.Lock()
	defer s.backlogMu.Unlock()
	return append([]*events.Event(nil), s.backlog...)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}

	if backlog := s.recent(); len(backlog) > 0 {
		if data, err := events.NewBatchedEvents(backlog).JSON(); err == nil {
			client.send <- data
		}
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "healthy",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "no detector attached", http.StatusServiceUnavailable)
		return
	}
	stats := s.stats()
	writeJSON(w, struct {
		models.DetectionStats
		NormalCount uint64 `json:"normal_count"`
	}{stats, stats.NormalCount()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// readPump discards client messages and keeps the connection alive.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Debug("websocket read error", logging.Err(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
