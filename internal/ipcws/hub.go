// Package ipcws streams progress envelopes to the desktop shell over a
// loopback WebSocket. The shell is a black box to the core: it subscribes,
// renders, and owns event retention. Slow subscribers are dropped rather
// than ever back-pressuring a sync.
package ipcws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberlaunch/emberlaunch/pkg/protocol"
)

const sendBuffer = 256

// Hub accepts WebSocket subscribers and broadcasts envelopes to all of them.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	srv     *http.Server
	addr    string
}

// client's send channel is never closed; drop signals via done instead, so
// a broadcast racing a disconnect can never hit a closed channel.
type client struct {
	conn *websocket.Conn
	send chan protocol.Envelope
	done chan struct{}
	once sync.Once
}

// NewHub creates an idle hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Serve binds addr (use "127.0.0.1:0" for an ephemeral port) and serves the
// /events endpoint in the background. Returns the bound address.
func (h *Hub) Serve(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.handleEvents)

	h.mu.Lock()
	h.srv = &http.Server{Handler: mux}
	h.addr = ln.Addr().String()
	h.mu.Unlock()

	go func() {
		if err := h.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("ipc server stopped", "err", err)
		}
	}()
	return h.addr, nil
}

// Addr returns the bound address, empty before Serve.
func (h *Hub) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Close shuts the server down and disconnects all subscribers.
func (h *Hub) Close() error {
	h.mu.Lock()
	srv := h.srv
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{
		conn: conn,
		send: make(chan protocol.Envelope, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("ipc subscriber connected", "remote", conn.RemoteAddr())

	go h.writeLoop(c)
	go h.readLoop(c)
}

// writeLoop serializes all writes for one subscriber.
func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteJSON(env); err != nil {
				h.logger.Debug("ipc write failed, dropping subscriber", "err", err)
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop discards inbound frames; its only job is noticing disconnects.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	c.conn.Close()
}

// Broadcast sends an envelope to every subscriber. A subscriber whose send
// buffer is full is dropped so a stalled shell can never block a sync.
func (h *Hub) Broadcast(env protocol.Envelope) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case <-c.done:
			// Disconnected between snapshot and send.
		case c.send <- env:
		default:
			h.logger.Warn("ipc subscriber too slow, dropping")
			h.drop(c)
		}
	}
}

// BroadcastProgress wraps a payload in an envelope and broadcasts it.
// Marshal problems are logged, not returned; progress delivery is
// best-effort.
func (h *Hub) BroadcastProgress(msgType string, payload any) {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		h.logger.Warn("ipc payload not sent", "type", msgType, "err", err)
		return
	}
	h.Broadcast(env)
}
