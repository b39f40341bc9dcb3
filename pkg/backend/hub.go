package backend

import "sync"

// Subscription is returned by Subscribe. Unsubscribe is safe to call more
// than once.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Hub fans auth events out to subscribers. Delivery is synchronous: Publish
// returns after every listener registered at publish time has run.
type Hub struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]func(AuthEvent)
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[uint64]func(AuthEvent))}
}

func (h *Hub) Subscribe(fn func(AuthEvent)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.listeners[id] = fn

	return NewSubscription(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	})
}

func (h *Hub) Publish(ev AuthEvent) {
	h.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
