// Package observe mirrors simulation progress to websocket observers.
package observe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/plus3/ecosim/sim"
	"go.uber.org/zap"
)

const (
	defaultBuffer       = 64
	defaultWriteTimeout = 5 * time.Second
)

// Frame is one sampled census as sent to observers.
type Frame struct {
	RunID  uuid.UUID  `json:"run_id"`
	Seed   uint64     `json:"seed"`
	Census sim.Census `json:"census"`
	Births int        `json:"births"`
	Deaths int        `json:"deaths"`
	Meals  int        `json:"meals"`
}

// NewFrame captures the latest census and tally of s.
func NewFrame(s *sim.Simulation) Frame {
	tally := s.Tally()
	return Frame{
		RunID:  s.RunID,
		Seed:   s.World.Settings.Seed,
		Census: s.Census.Latest(),
		Births: tally.Births,
		Deaths: tally.TotalDeaths(),
		Meals:  tally.Meals,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans frames out to connected websocket clients. A client that cannot
// keep up misses frames instead of stalling the simulation.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte
	closed  bool

	upgrader     websocket.Upgrader
	buffer       int
	writeTimeout time.Duration
	dropped      atomic.Int64
	log          *zap.Logger
}

type Option func(*Hub)

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithBuffer sets how many frames may queue per client before drops begin.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginCheck replaces the default, which accepts every origin.
func WithOriginCheck(check func(*http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = check }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*client]struct{}),
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		buffer:       defaultBuffer,
		writeTimeout: defaultWriteTimeout,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and streams frames until the client goes
// away or the hub closes. New clients first receive the latest frame.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	if !h.add(c) {
		conn.Close()
		return
	}
	h.log.Debug("observer connected", zap.String("remote", conn.RemoteAddr().String()))
	defer func() {
		h.remove(c)
		conn.Close()
		h.log.Debug("observer disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()

	// Observers only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(c)
				return
			}
		}
	}()

	for b := range c.send {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug("observer write failed", zap.Error(err))
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.writeTimeout))
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues b for every client without blocking.
func (h *Hub) Broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = b
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Publish encodes f as JSON and broadcasts it.
func (h *Hub) Publish(f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	h.Broadcast(b)
	return nil
}

// Attach publishes a frame of s every time its census takes a sample.
func (h *Hub) Attach(s *sim.Simulation) {
	s.Census.OnStepped(func() {
		if s.Census.Latest().Step%s.Census.SampleEvery != 0 {
			return
		}
		if err := h.Publish(NewFrame(s)); err != nil {
			h.log.Warn("publish failed", zap.Stringer("run", s.RunID), zap.Error(err))
		}
	})
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were skipped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
