package cartstore

import (
	"context"
	"fmt"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/notify"
)

// AddItem adds quantity units of p. A quantity below one adds a single unit.
func (s *Store) AddItem(ctx context.Context, p domain.Product, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	st, err := s.currentState()
	if err != nil {
		return err
	}

	if st == GuestLocal {
		applied, err := s.writeLocal(ctx, func(items []domain.CartItem) []domain.CartItem {
			return addOrIncrement(items, p, quantity)
		})
		if applied {
			if err == nil {
				s.notifyAdded(ctx, p)
			}
			return err
		}
	}

	// No optimistic add: the view changes only after the remote cart confirms.
	err = s.mutate(ctx, mutation{
		op: "add item",
		call: func(ctx context.Context) error {
			return s.remote.Add(ctx, p.ID, quantity)
		},
		onSuccess: func(ctx context.Context) error {
			s.notifyAdded(ctx, p)
			return s.resync(ctx)
		},
		failure: "failed to add item to cart",
	})
	return err
}

func (s *Store) RemoveItem(ctx context.Context, id string) error {
	st, err := s.currentState()
	if err != nil {
		return err
	}

	if st == GuestLocal {
		applied, err := s.writeLocal(ctx, func(items []domain.CartItem) []domain.CartItem {
			return without(items, id)
		})
		if applied {
			return err
		}
	}

	s.mu.RLock()
	removed, index, found := lineOf(s.items, id)
	s.mu.RUnlock()

	return s.mutate(ctx, mutation{
		op: "remove item",
		apply: func(items []domain.CartItem) []domain.CartItem {
			return without(items, id)
		},
		call: func(ctx context.Context) error {
			return s.remote.Remove(ctx, id)
		},
		rollback: func(ctx context.Context) {
			if err := s.resync(ctx); err == nil || !found {
				return
			}
			s.updateRemoteView(func(items []domain.CartItem) []domain.CartItem {
				return restoreAt(items, removed, index)
			})
		},
		failure: "failed to remove item",
	})
}

// UpdateQuantity sets the quantity of id; zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id)
	}
	st, err := s.currentState()
	if err != nil {
		return err
	}

	if st == GuestLocal {
		applied, err := s.writeLocal(ctx, func(items []domain.CartItem) []domain.CartItem {
			return withQuantity(items, id, quantity)
		})
		if applied {
			return err
		}
	}

	s.mu.RLock()
	previous, found := quantityOf(s.items, id)
	s.mu.RUnlock()

	return s.mutate(ctx, mutation{
		op: "update quantity",
		apply: func(items []domain.CartItem) []domain.CartItem {
			return withQuantity(items, id, quantity)
		},
		call: func(ctx context.Context) error {
			return s.remote.Update(ctx, id, quantity)
		},
		rollback: func(context.Context) {
			if !found {
				return
			}
			s.updateRemoteView(func(items []domain.CartItem) []domain.CartItem {
				return withQuantity(items, id, previous)
			})
		},
		failure: "failed to update quantity",
	})
}

func (s *Store) ClearCart(ctx context.Context) error {
	st, err := s.currentState()
	if err != nil {
		return err
	}

	if st == GuestLocal {
		applied, err := s.writeLocal(ctx, func([]domain.CartItem) []domain.CartItem {
			return []domain.CartItem{}
		})
		if applied {
			return err
		}
	}

	return s.mutate(ctx, mutation{
		op: "clear cart",
		call: func(ctx context.Context) error {
			return s.remote.Clear(ctx)
		},
		onSuccess: func(context.Context) error {
			s.updateRemoteView(func([]domain.CartItem) []domain.CartItem {
				return []domain.CartItem{}
			})
			return nil
		},
		failure: "failed to clear cart",
	})
}

func (s *Store) notifyAdded(ctx context.Context, p domain.Product) {
	s.notifier.Notify(ctx, notify.Notice{
		Level:   notify.LevelInfo,
		Title:   "Added to cart",
		Message: fmt.Sprintf("%s added to your cart", p.Name),
	})
}
