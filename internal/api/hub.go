package api

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/models"
)

const subscriberBuffer = 32

// Hub fans committed summary events out to websocket subscribers. Slow
// subscribers lose events rather than delaying others.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan []byte
	nextID uint64
	closed bool
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		subs:   make(map[uint64]chan []byte),
		logger: logger,
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Close.
func (h *Hub) Subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if h.closed {
		close(ch)
		return 0, ch
	}
	h.nextID++
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify broadcasts an event to every subscriber
func (h *Hub) Notify(_ context.Context, event models.SummaryEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode summary event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- data:
		default:
			h.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"system":     event.State.SystemKey,
			}).Warn("Subscriber too slow, dropping summary event")
		}
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Upgrade rejects plain HTTP requests on websocket routes
func (h *Hub) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve streams events to one websocket client until it disconnects
func (h *Hub) Serve(c *websocket.Conn) {
	defer c.Close()

	id, events := h.Subscribe()
	defer h.Unsubscribe(id)

	// Clients only listen; reading detects the close frame
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}
