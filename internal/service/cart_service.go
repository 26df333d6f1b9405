package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aquavo/fishweb-cart/internal/cache"
	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	cacheWriteTimeout = time.Second
	versionStripes    = 64
)

// ProductCatalog resolves product ids into the product data shown in cart lines.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog ProductCatalog
	logger  *slog.Logger
	sfg     singleflight.Group // one repository read per user and version on concurrent cache misses

	versions [versionStripes]cartVersion
}

// cartVersion counts mutations for the users hashed onto it. A repository read
// only fills the cache if no mutation started or finished while it ran.
type cartVersion struct {
	mu sync.Mutex
	n  uint64
}

func (v *cartVersion) current() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.n
}

func (v *cartVersion) bump() {
	v.mu.Lock()
	v.n++
	v.mu.Unlock()
}

func (s *CartService) version(userID string) *cartVersion {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.versions[h.Sum32()%versionStripes]
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog ProductCatalog, logger *slog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		logger:  logger.With("component", "cart_service"),
	}
}

// GetCart returns the stored cart, or an empty one when the user has none.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	ver := s.version(userID)
	seen := ver.current()

	v, err, _ := s.sfg.Do(userID+"@"+strconv.FormatUint(seen, 10), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cache get failed", "user_id", userID, "error", err)
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, Items: []domain.StoredItem{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		s.fillCache(ctx, userID, ver, seen, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// fillCache stores cart unless a mutation overlapped the read that produced it.
func (s *CartService) fillCache(ctx context.Context, userID string, ver *cartVersion, seen uint64, cart *domain.Cart) {
	ver.mu.Lock()
	defer ver.mu.Unlock()
	if ver.n != seen {
		s.logger.DebugContext(ctx, "skipping cache fill after concurrent mutation", "user_id", userID)
		return
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := s.cache.Set(setCtx, userID, cart); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", "user_id", userID, "error", err)
	}
}

// View returns the cart lines joined with catalog data, in insertion order.
// Lines whose product left the catalog are skipped.
func (s *CartService) View(ctx context.Context, userID string) ([]domain.RemoteItem, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	lines := make([]domain.RemoteItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		p, ok := products[item.ProductID]
		if !ok {
			s.logger.WarnContext(ctx, "cart references unknown product", "user_id", userID, "product_id", item.ProductID)
			continue
		}
		lines = append(lines, domain.RemoteItem{ID: item.ProductID, Product: p, Quantity: item.Quantity})
	}
	return lines, nil
}

// AddItem adds quantity to the product's line. Repeated adds accumulate.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	s.version(userID).bump()
	if err := s.repo.AddItem(ctx, userID, productID, quantity); err != nil {
		s.logger.ErrorContext(ctx, "repo add item failed", "user_id", userID, "product_id", productID, "error", err)
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	s.version(userID).bump()
	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			s.logger.ErrorContext(ctx, "repo update item quantity failed", "user_id", userID, "product_id", productID, "error", err)
		}
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	s.version(userID).bump()
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			s.logger.ErrorContext(ctx, "repo remove item failed", "user_id", userID, "product_id", productID, "error", err)
		}
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// ClearCart deletes the user's cart. Clearing a cart that does not exist succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	s.version(userID).bump()
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.logger.ErrorContext(ctx, "repo delete cart failed", "user_id", userID, "error", err)
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// invalidateCache runs after a repository write. Bumping the version again
// under the same lock as the delete keeps a read that started before the write
// from filling the cache afterwards.
func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	ver := s.version(userID)
	ver.mu.Lock()
	defer ver.mu.Unlock()
	ver.n++

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed", "user_id", userID, "error", err)
	}
}
