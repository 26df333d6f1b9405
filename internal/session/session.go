package session

import (
	"context"
	"sync"
)

// Actor is an authenticated shopper. A nil *Actor means guest.
type Actor struct {
	UserID string
	Token  string
}

type Provider interface {
	Current() *Actor
	// Watch delivers the current actor immediately and every change after it.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) <-chan *Actor
}

// Holder is an observable actor value.
type Holder struct {
	mu       sync.RWMutex
	current  *Actor
	watchers map[chan *Actor]struct{}
}

func NewHolder(initial *Actor) *Holder {
	return &Holder{
		current:  initial,
		watchers: make(map[chan *Actor]struct{}),
	}
}

func (h *Holder) Current() *Actor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Set replaces the actor and notifies watchers. Slow watchers only see the latest value.
func (h *Holder) Set(a *Actor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = a
	for ch := range h.watchers {
		deliverLatest(ch, a)
	}
}

func (h *Holder) Watch(ctx context.Context) <-chan *Actor {
	ch := make(chan *Actor, 1)

	h.mu.Lock()
	ch <- h.current
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.watchers, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

// deliverLatest replaces a pending undelivered value so the buffer never blocks Set.
func deliverLatest(ch chan *Actor, a *Actor) {
	select {
	case ch <- a:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- a:
	default:
	}
}
