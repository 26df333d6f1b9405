package service

import (
	"context"
	"sync"

	"github.com/aquavo/fishweb-cart/internal/cache"
	"github.com/aquavo/fishweb-cart/internal/catalog"
	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/repository"
)

type mockRepository struct {
	m     sync.RWMutex
	cart  *domain.Cart
	err   error
	reads int

	// afterRead runs once a read has copied the cart, before it returns.
	afterRead func()
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	cart, err := m.read()
	if m.afterRead != nil {
		m.afterRead()
	}
	return cart, err
}

func (m *mockRepository) read() (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	c := *m.cart
	c.Items = append([]domain.StoredItem(nil), m.cart.Items...)
	return &c, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = c
	return m.err
}

func (m *mockRepository) AddItem(_ context.Context, userID, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}
	for i := range m.cart.Items {
		if m.cart.Items[i].ProductID == productID {
			m.cart.Items[i].Quantity += quantity
			return nil
		}
	}
	m.cart.Items = append(m.cart.Items, domain.StoredItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, _ string, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart != nil {
		for i := range m.cart.Items {
			if m.cart.Items[i].ProductID == productID {
				m.cart.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) RemoveItem(_ context.Context, _ string, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart != nil {
		for i, item := range m.cart.Items {
			if item.ProductID == productID {
				m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) DeleteCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return repository.ErrCartNotFound
	}
	m.cart = nil
	return nil
}

func (m *mockRepository) readCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.reads
}

func (m *mockRepository) items() []domain.StoredItem {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.cart == nil {
		return nil
	}
	return append([]domain.StoredItem(nil), m.cart.Items...)
}

type mockCache struct {
	m      sync.RWMutex
	cart   *domain.Cart
	err    error
	delErr error
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.delErr
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

type mockCatalog struct {
	products map[string]domain.Product
	err      error
}

func newMockCatalog(products ...domain.Product) *mockCatalog {
	c := &mockCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *mockCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	if c.err != nil {
		return domain.Product{}, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (c *mockCatalog) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
