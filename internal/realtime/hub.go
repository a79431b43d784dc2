package realtime

import (
	"context"
	"sync"
)

// Collection names carried by a Change
const (
	CollectionCampaigns = "campaigns"
	CollectionAll       = "*"
)

// Change announces that a document in a collection was written
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	HostID     string `json:"host_id,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

// Publisher announces changes to interested listeners
type Publisher interface {
	Publish(ctx context.Context, change Change)
}

type listener struct {
	match  func(Change) bool
	signal chan struct{}
}

// Hub fans change signals out to in-process listeners. A listener receives
// at most one pending signal; bursts of changes coalesce into one wakeup.
type Hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]*listener
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]*listener)}
}

// Publish wakes every listener whose filter matches the change
func (h *Hub) Publish(_ context.Context, change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners {
		if change.Collection != CollectionAll && l.match != nil && !l.match(change) {
			continue
		}
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
}

// Listen registers a filter and returns its wakeup channel plus a cancel
// func that must be called to release the registration.
func (h *Hub) Listen(match func(Change) bool) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	l := &listener{match: match, signal: make(chan struct{}, 1)}
	h.listeners[id] = l

	var once sync.Once
	return l.signal, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Len returns the number of registered listeners
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
