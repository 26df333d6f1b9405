package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/localstore"
)

// loadLocal reads the guest snapshot. Absent or unreadable data is an empty cart.
func (s *Store) loadLocal(ctx context.Context) []domain.CartItem {
	data, err := s.local.Get(ctx, s.cfg.StorageKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return []domain.CartItem{}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load cart from local storage", "error", err)
		return []domain.CartItem{}
	}
	items, err := decodeSnapshot(data)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to parse local cart snapshot", "error", err)
		return []domain.CartItem{}
	}
	return items
}

// writeLocal applies fn to the guest cart and persists the result before
// returning. It reports false without touching anything when the store has
// left GuestLocal in the meantime.
func (s *Store) writeLocal(ctx context.Context, fn func([]domain.CartItem) []domain.CartItem) (bool, error) {
	s.mu.Lock()
	if s.state != GuestLocal {
		s.mu.Unlock()
		return false, nil
	}
	next := fn(cloneItems(s.items))
	if next == nil {
		next = []domain.CartItem{}
	}
	s.items = next
	data, err := json.Marshal(next)
	if err == nil {
		err = s.local.Set(ctx, s.cfg.StorageKey, data)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save cart to local storage", "error", err)
		return true, fmt.Errorf("persist cart: %w", err)
	}
	s.broadcast(ctx, data)
	return true, nil
}

// broadcast tells other clients of the same storage about a write. Best effort.
func (s *Store) broadcast(ctx context.Context, value []byte) {
	err := s.local.Publish(ctx, localstore.Change{Key: s.cfg.StorageKey, Value: value, Origin: s.origin})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to broadcast cart change", "error", err)
	}
}

// applyForeign adopts a snapshot written by another client while in guest mode.
func (s *Store) applyForeign(ctx context.Context, c localstore.Change) {
	if c.Origin == s.origin || c.Key != s.cfg.StorageKey {
		return
	}
	items := []domain.CartItem{}
	if c.Value != nil {
		parsed, err := decodeSnapshot(c.Value)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to parse cart data from storage event", "error", err)
			return
		}
		items = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != GuestLocal {
		return
	}
	s.items = items
}

func decodeSnapshot(data []byte) ([]domain.CartItem, error) {
	var items []domain.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return normalize(items), nil
}
