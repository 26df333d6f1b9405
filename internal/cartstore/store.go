// Package cartstore owns the shopper's cart and reconciles it between the
// guest snapshot in local storage and the remote cart of an authenticated user.
//
// A Store starts Uninitialized. Init (or the first session value seen by Run)
// moves it to GuestLocal when nobody is signed in, or through Merging to
// AuthoritativeRemote when an actor is present. A later sign-in while
// GuestLocal pushes the guest lines to the remote cart once, clears the
// snapshot and adopts the remote cart.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/localstore"
	"github.com/aquavo/fishweb-cart/internal/notify"
	"github.com/aquavo/fishweb-cart/internal/session"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var ErrNotInitialized = errors.New("cart store not initialized")

// Remote is the remote cart API as seen by the store.
type Remote interface {
	Fetch(ctx context.Context) ([]domain.CartItem, error)
	Add(ctx context.Context, productID string, quantity int) error
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id string, quantity int) error
	Clear(ctx context.Context) error
}

type Config struct {
	StorageKey       string
	MergeConcurrency int
}

const (
	DefaultStorageKey       = "fish-web-cart-v2"
	defaultMergeConcurrency = 4
)

// View is a consistent read of the cart at one instant.
type View struct {
	State      State
	Items      []domain.CartItem
	TotalItems int
	TotalPrice float64
}

type Store struct {
	cfg      Config
	origin   string
	local    localstore.Backend
	remote   Remote
	sessions session.Provider
	notifier notify.Notifier
	logger   *slog.Logger
	sfg      singleflight.Group

	// transitionMu serializes Init, merges and logouts.
	transitionMu sync.Mutex

	mu         sync.RWMutex
	state      State
	actor      *session.Actor
	items      []domain.CartItem
	fetchSeq   uint64
	appliedSeq uint64
}

func New(cfg Config, local localstore.Backend, remote Remote, sessions session.Provider, notifier notify.Notifier, logger *slog.Logger) *Store {
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.MergeConcurrency < 1 {
		cfg.MergeConcurrency = defaultMergeConcurrency
	}
	return &Store{
		cfg:      cfg,
		origin:   uuid.NewString(),
		local:    local,
		remote:   remote,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.With("component", "cartstore"),
		items:    []domain.CartItem{},
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.TotalItems(s.items)
}

func (s *Store) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.TotalPrice(s.items)
}

func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		State:      s.state,
		Items:      cloneItems(s.items),
		TotalItems: domain.TotalItems(s.items),
		TotalPrice: domain.TotalPrice(s.items),
	}
}

// Init performs the first load for whoever the session provider reports now.
func (s *Store) Init(ctx context.Context) error {
	return s.transition(ctx, s.sessions.Current())
}

// Run follows session changes and foreign local-storage writes until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	changes, err := s.local.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to local changes: %w", err)
	}
	actors := s.sessions.Watch(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case actor, ok := <-actors:
			if !ok {
				return nil
			}
			if err := s.transition(ctx, actor); err != nil {
				s.logger.ErrorContext(ctx, "session transition failed", "error", err)
			}
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			s.applyForeign(ctx, c)
		}
	}
}

func (s *Store) transition(ctx context.Context, actor *session.Actor) error {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	prevState, prevActor := s.state, s.actor
	if actor == nil && prevState == GuestLocal {
		s.mu.Unlock()
		return nil
	}
	if actor != nil && prevState == AuthoritativeRemote && prevActor != nil && prevActor.UserID == actor.UserID {
		s.actor = actor
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if actor == nil {
		items := s.loadLocal(ctx)
		s.mu.Lock()
		s.state = GuestLocal
		s.actor = nil
		s.items = items
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "cart in guest mode", "from", prevState.String(), "items", len(items))
		return nil
	}
	return s.merge(ctx, actor)
}

// Refresh re-reads the remote cart. Concurrent calls share one request.
func (s *Store) Refresh(ctx context.Context) error {
	if st := s.State(); !st.remote() {
		if st == Uninitialized {
			return ErrNotInitialized
		}
		return nil
	}
	_, err, _ := s.sfg.Do("refresh", func() (interface{}, error) {
		return nil, s.resync(ctx)
	})
	return err
}

// resync fetches the remote cart and adopts it unless a newer fetch already landed.
func (s *Store) resync(ctx context.Context) error {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	items, err := s.remote.Fetch(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "fetch remote cart failed", "error", err)
		return fmt.Errorf("fetch cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.remote() || seq < s.appliedSeq {
		return nil
	}
	s.appliedSeq = seq
	s.items = normalize(items)
	return nil
}

func (s *Store) currentState() (State, error) {
	st := s.State()
	if st == Uninitialized {
		return st, ErrNotInitialized
	}
	return st, nil
}
