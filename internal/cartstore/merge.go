package cartstore

import (
	"context"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/notify"
	"github.com/aquavo/fishweb-cart/internal/session"
	"golang.org/x/sync/errgroup"
)

// merge pushes the guest snapshot to the remote cart, clears the snapshot and
// adopts the remote cart. A failed push is logged and the line is lost: the
// snapshot is cleared once every push has settled, whatever the outcome.
func (s *Store) merge(ctx context.Context, actor *session.Actor) error {
	s.mu.Lock()
	s.state = Merging
	s.actor = actor
	s.mu.Unlock()

	guest := s.loadLocal(ctx)
	lg := s.logger.With("user_id", actor.UserID)
	if len(guest) > 0 {
		lg.InfoContext(ctx, "merging guest cart", "items", len(guest))

		var g errgroup.Group
		g.SetLimit(s.cfg.MergeConcurrency)
		for _, item := range guest {
			g.Go(func() error {
				if err := s.remote.Add(ctx, item.ID, item.Quantity); err != nil {
					lg.WarnContext(ctx, "failed to merge guest item", "product_id", item.ID, "quantity", item.Quantity, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := s.local.Remove(ctx, s.cfg.StorageKey); err != nil {
			lg.ErrorContext(ctx, "failed to clear guest cart", "error", err)
		} else {
			s.broadcast(ctx, nil)
		}
	}

	s.mu.Lock()
	s.state = AuthoritativeRemote
	s.items = []domain.CartItem{}
	s.mu.Unlock()

	if err := s.resync(ctx); err != nil {
		s.notifier.Notify(ctx, notify.Notice{Level: notify.LevelError, Title: "Error", Message: "failed to load your cart"})
		return err
	}
	return nil
}
