// Package realtime delivers recipe counter changes to open sessions.
package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Hub fans counter updates out to subscribers. Publish never blocks: a
// subscriber whose queue is full misses the update.
type Hub struct {
	buffer int
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[chan feedback.CounterUpdate]struct{}
	closed bool
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		buffer: buffer,
		logger: logger,
		subs:   make(map[chan feedback.CounterUpdate]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes it
// and closes the channel; calling it more than once is fine.
func (h *Hub) Subscribe() (<-chan feedback.CounterUpdate, func()) {
	ch := make(chan feedback.CounterUpdate, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers u to every subscriber with room and returns how many
// received it.
func (h *Hub) Publish(u feedback.CounterUpdate) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- u:
			delivered++
		default:
			h.logger.Debug("dropping counter update for slow subscriber", zap.Int("recipe_id", u.RecipeID))
		}
	}
	return delivered
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects all subscribers. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
