package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"netmonitor/internal/models"
)

const (
	liveWriteTimeout = 5 * time.Second
	livePingInterval = 30 * time.Second
	liveSendBuffer   = 16

	messageSample = "sample"
)

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type liveMessage struct {
	Type   string         `json:"type"`
	RunID  string         `json:"run_id"`
	Sample *models.Sample `json:"sample,omitempty"`
}

type liveClient struct {
	send chan liveMessage
	quit chan struct{}
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() { close(c.quit) })
}

// hub fans new samples out to websocket clients. Slow clients drop messages
// rather than stall the cycle loop.
type hub struct {
	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*liveClient]struct{})}
}

func (h *hub) register() *liveClient {
	c := &liveClient{send: make(chan liveMessage, liveSendBuffer), quit: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) unregister(c *liveClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) broadcast(msg liveMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Debug().Msg("live client lagging, dropping sample")
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := s.hub.register()
	defer s.hub.unregister(client)
	s.serveLiveConnection(conn, client)
}

func (s *Server) serveLiveConnection(conn *websocket.Conn, client *liveClient) {
	defer conn.Close()

	initial := liveMessage{Type: messageSample, RunID: s.series.RunID()}
	if latest, ok := s.series.Latest(); ok {
		initial.Sample = &latest
	}
	if err := writeLiveMessage(conn, initial); err != nil {
		return
	}

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-client.send:
			if err := writeLiveMessage(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(liveWriteTimeout))
			return
		case <-done:
			return
		}
	}
}

func writeLiveMessage(conn *websocket.Conn, msg liveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteJSON(msg)
}
