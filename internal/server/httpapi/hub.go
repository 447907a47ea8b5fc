package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/dmitrijs2005/teadiary/internal/logging"
)

const (
	defaultChannel = "default"
	writeTimeout   = 5 * time.Second
)

// Hub relays every frame a peer sends to the other peers of the same
// channel. Frames are not inspected or stored.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*websocket.Conn]struct{}
	closed   bool
	logger   logging.Logger
}

func NewHub(l logging.Logger) *Hub {
	return &Hub{channels: make(map[string]map[*websocket.Conn]struct{}), logger: l}
}

func (h *Hub) join(channel string, c *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	peers, ok := h.channels[channel]
	if !ok {
		peers = make(map[*websocket.Conn]struct{})
		h.channels[channel] = peers
	}
	peers[c] = struct{}{}
	return true
}

func (h *Hub) leave(channel string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := h.channels[channel]
	delete(peers, c)
	if len(peers) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) others(channel string, c *websocket.Conn) []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(h.channels[channel]))
	for peer := range h.channels[channel] {
		if peer != c {
			out = append(out, peer)
		}
	}
	return out
}

// Peers returns the number of connections on channel.
func (h *Hub) Peers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

// Serve runs one peer connection until it disconnects.
func (h *Hub) Serve(ctx context.Context, channel string, c *websocket.Conn) {
	if !h.join(channel, c) {
		_ = c.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer func() {
		h.leave(channel, c)
		_ = c.CloseNow()
	}()

	c.SetReadLimit(maxBodySize)
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		for _, peer := range h.others(channel, c) {
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			if err := peer.Write(wctx, typ, data); err != nil {
				h.logger.Debug(ctx, "notify relay failed", "channel", channel, "error", err)
			}
			cancel()
		}
	}
}

// Close disconnects every peer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*websocket.Conn
	for _, peers := range h.channels {
		for c := range peers {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		_ = c.Close(websocket.StatusGoingAway, "shutting down")
	}
}

func (s *Server) handleNotify(w http.ResponseWriter, req *http.Request) {
	channel := req.URL.Query().Get("channel")
	if channel == "" {
		channel = defaultChannel
	}

	c, err := websocket.Accept(w, req, nil)
	if err != nil {
		s.logger.Warn(req.Context(), "websocket upgrade failed", "error", err)
		return
	}
	s.hub.Serve(req.Context(), channel, c)
}
