package repository

import (
	"context"
	"sync"
	"time"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/google/uuid"
)

// CleanupInterval is how often the memory repository drops expired carts.
const CleanupInterval = time.Hour

// MemoryRepository implements CartRepository in process memory. Carts idle for
// longer than the Mongo TTL index allows are expired by a background loop.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // userID -> cart
	now   func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{
		carts:       make(map[string]*domain.Cart),
		now:         func() time.Time { return time.Now().UTC() },
		stopCleanup: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

func (r *MemoryRepository) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.expireCarts()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *MemoryRepository) expireCarts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-cartTTL)
	for userID, cart := range r.carts {
		if cart.UpdatedAt.Before(cutoff) {
			delete(r.carts, userID)
		}
	}
}

func (r *MemoryRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return copyCart(cart), nil
}

func (r *MemoryRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	stored := copyCart(cart)
	if existing, ok := r.carts[cart.UserID]; ok {
		stored.ID = existing.ID
	} else if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	r.carts[cart.UserID] = stored
	return nil
}

func (r *MemoryRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cart, ok := r.carts[userID]
	if !ok {
		cart = &domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
		r.carts[userID] = cart
	}
	cart.UpdatedAt = now
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			cart.Items[i].AddedAt = now
			return nil
		}
	}
	cart.Items = append(cart.Items, domain.StoredItem{ProductID: productID, Quantity: quantity, AddedAt: now})
	return nil
}

func (r *MemoryRepository) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			cart.UpdatedAt = r.now()
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *MemoryRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.UpdatedAt = r.now()
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *MemoryRepository) DeleteCart(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(r.carts, userID)
	return nil
}

// Close stops the cleanup loop.
func (r *MemoryRepository) Close() error {
	close(r.stopCleanup)
	r.wg.Wait()
	return nil
}

func copyCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make([]domain.StoredItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
