// Package stream publishes live growth snapshots over websockets and exposes
// HTTP control endpoints for a running culture.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// Hub fans JSON messages out to every connected websocket client. Slow
// clients miss messages rather than stall the simulation.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	channels map[int]chan []byte
	nextID   int
	latest   []byte
	closed   bool
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:   logger,
		channels: make(map[int]chan []byte),
	}
}

// addChannel registers ch and primes it with the latest message.
func (h *Hub) addChannel(ch chan []byte) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, false
	}
	id := h.nextID
	h.nextID++
	h.channels[id] = ch
	if h.latest != nil {
		ch <- h.latest
	}
	return id, true
}

func (h *Hub) delChannel(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[id]; ok {
		close(ch)
		delete(h.channels, id)
	}
}

// Broadcast encodes v once and queues it for every client. The message is
// also kept so late joiners start from the current state.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	for id, ch := range h.channels {
		select {
		case ch <- data:
		default:
			h.logger.Debug("dropping message for slow client", "client", id)
		}
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.channels {
		close(ch)
		delete(h.channels, id)
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, clientBuffer)
	id, ok := h.addChannel(ch)
	if !ok {
		return
	}
	h.logger.Debug("client connected", "client", id)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range ch {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeTimeout))
	}()

	// Clients never send anything meaningful; reading only detects hangup.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.delChannel(id)
	<-writerDone
	h.logger.Debug("client disconnected", "client", id)
}
