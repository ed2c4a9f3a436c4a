// Package broadcast fans dashboard snapshots out to connected viewers.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/domain/models"
)

// Viewer is a connected dashboard client. Viewers never mutate state; they
// only receive snapshots.
type Viewer interface {
	// Send delivers one snapshot. An error marks the viewer dead and causes
	// its removal from the hub.
	Send(snapshot models.Snapshot) error
	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}

// Hub maintains the live viewer set and delivers whole-fleet snapshots.
// Broadcasts are serialized, so every viewer observes them in the same
// relative order.
type Hub struct {
	mu      sync.Mutex
	sendMu  sync.Mutex
	viewers map[Viewer]struct{}
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		viewers: make(map[Viewer]struct{}),
		logger:  logger,
	}
}

// Register adds a viewer and pushes it one immediate snapshot so it does not
// have to race the read path for its initial state. The viewer receives all
// subsequent broadcasts.
func (h *Hub) Register(v Viewer, initial models.Snapshot) {
	// The initial send happens under the send mutex and the viewer joins the
	// set before it is released, so the viewer never observes a broadcast
	// older than its initial snapshot and never misses the one after it.
	h.sendMu.Lock()
	err := v.Send(initial)
	if err == nil {
		h.mu.Lock()
		h.viewers[v] = struct{}{}
		count := len(h.viewers)
		h.mu.Unlock()
		h.logger.Info("viewer connected", zap.Int("viewers", count))
	}
	h.sendMu.Unlock()

	if err != nil {
		h.logger.Warn("initial snapshot delivery failed", zap.Error(err))
		_ = v.Close()
	}
}

// Unregister removes a viewer and closes its connection. Unknown or already
// removed viewers are a no-op.
func (h *Hub) Unregister(v Viewer) {
	h.mu.Lock()
	_, known := h.viewers[v]
	delete(h.viewers, v)
	count := len(h.viewers)
	h.mu.Unlock()

	if !known {
		return
	}
	_ = v.Close()
	h.logger.Info("viewer disconnected", zap.Int("viewers", count))
}

// ViewerCount returns the number of registered viewers.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Broadcast delivers the snapshot to every registered viewer. Iteration runs
// over a copy of the viewer set taken at broadcast time, so connects and
// disconnects during the send loop are safe. A failed send evicts only that
// viewer and never propagates to the caller.
func (h *Hub) Broadcast(snapshot models.Snapshot) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	targets := make([]Viewer, 0, len(h.viewers))
	for v := range h.viewers {
		targets = append(targets, v)
	}
	h.mu.Unlock()

	for _, v := range targets {
		if err := v.Send(snapshot); err != nil {
			h.logger.Warn("snapshot delivery failed, dropping viewer", zap.Error(err))
			h.Unregister(v)
		}
	}
}

// CloseAll disconnects every viewer. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	targets := make([]Viewer, 0, len(h.viewers))
	for v := range h.viewers {
		targets = append(targets, v)
	}
	h.viewers = make(map[Viewer]struct{})
	h.mu.Unlock()

	for _, v := range targets {
		_ = v.Close()
	}
}
