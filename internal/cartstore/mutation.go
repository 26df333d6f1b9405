package cartstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/notify"
)

var sessionExpired = notify.Notice{
	Level:   notify.LevelError,
	Title:   "Session expired",
	Message: "session expired, please sign in again",
}

// mutation is one remote cart change. apply runs on the in-memory view before
// the call, onSuccess after it succeeds and rollback after it fails.
type mutation struct {
	op        string
	apply     func([]domain.CartItem) []domain.CartItem
	call      func(context.Context) error
	onSuccess func(context.Context) error
	rollback  func(context.Context)
	failure   string
}

func (s *Store) mutate(ctx context.Context, m mutation) error {
	if m.apply != nil {
		s.updateRemoteView(m.apply)
	}

	if err := m.call(ctx); err != nil {
		s.logger.WarnContext(ctx, "remote cart mutation failed", "op", m.op, "error", err)
		if m.rollback != nil {
			m.rollback(ctx)
		}
		if errors.Is(err, domain.ErrSessionExpired) {
			s.notifier.Notify(ctx, sessionExpired)
		} else {
			s.notifier.Notify(ctx, notify.Notice{Level: notify.LevelError, Title: "Error", Message: m.failure})
		}
		return fmt.Errorf("%s: %w", m.op, err)
	}

	if m.onSuccess != nil {
		return m.onSuccess(ctx)
	}
	return nil
}

// updateRemoteView changes the in-memory view while the remote cart is authoritative.
func (s *Store) updateRemoteView(fn func([]domain.CartItem) []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.remote() {
		return
	}
	next := fn(cloneItems(s.items))
	if next == nil {
		next = []domain.CartItem{}
	}
	s.items = next
}
