// Package localstore holds the guest cart's persistent key-value storage and the
// change notification that keeps several open clients of one origin in step.
package localstore

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// Change describes a write to a key. Value is nil when the key was removed.
// Origin identifies the writer so it can skip its own broadcasts.
type Change struct {
	Key    string `json:"key"`
	Value  []byte `json:"value"`
	Origin string `json:"origin"`
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

type ChangeNotifier interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe returns a channel of changes that is closed once ctx is done.
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// Backend is a store that can also broadcast its changes.
type Backend interface {
	Store
	ChangeNotifier
}

const subscriberBuffer = 16

// broadcaster fans changes out to in-process subscribers.
// A subscriber whose buffer is full misses the change.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Change]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Change]struct{})}
}

func (b *broadcaster) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (b *broadcaster) subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
