package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aquavo/fishweb-cart/internal/catalog"
	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/aquavo/fishweb-cart/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tetra = domain.Product{ID: "prod-1", Name: "Neon Tetra", Price: 10000, Thumbnail: "/t.jpg", Slug: "neon-tetra"}
	fern  = domain.Product{ID: "prod-2", Name: "Java Fern", Price: 20000, Slug: "java-fern"}
)

func newTestService(repo *mockRepository, c *mockCache) *CartService {
	return NewCartService(repo, c, newMockCatalog(tetra, fern), logger.Discard())
}

func TestGetCart_FromRepoFillsCache(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "123",
		Items: []domain.StoredItem{
			{ProductID: "prod-1", Quantity: 5},
			{ProductID: "prod-2", Quantity: 10},
		},
	}}
	c := &mockCache{}

	sut := newTestService(repo, c)
	ret, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, ret.Items, 2)
	assert.Equal(t, "prod-1", ret.Items[0].ProductID)
	assert.Equal(t, 10, ret.Items[1].Quantity)
	assert.NotNil(t, c.getCart(), "cart was not set in cache")
}

func TestGetCart_RepoError(t *testing.T) {
	repo := &mockRepository{err: fmt.Errorf("database error")}
	c := &mockCache{}

	ret, err := newTestService(repo, c).GetCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
	assert.Nil(t, ret)
	assert.Nil(t, c.getCart())
}

func TestGetCart_CacheHit(t *testing.T) {
	repo := &mockRepository{}
	c := &mockCache{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{{ProductID: "prod-1", Quantity: 3}}}}

	ret, err := newTestService(repo, c).GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
	assert.Equal(t, 0, repo.readCount())
}

func TestGetCart_CacheErrorFallsBackToRepo(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{{ProductID: "prod-1", Quantity: 1}}}}
	c := &mockCache{err: fmt.Errorf("redis down")}

	ret, err := newTestService(repo, c).GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
}

func TestGetCart_NotFoundReturnsEmptyCart(t *testing.T) {
	ret, err := newTestService(&mockRepository{}, &mockCache{}).GetCart(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", ret.UserID)
	assert.NotNil(t, ret.Items)
	assert.Empty(t, ret.Items)
}

func TestGetCart_ConcurrentCallsReturnSameCart(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{{ProductID: "prod-1", Quantity: 1}}}}
	sut := newTestService(repo, &mockCache{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ret, err := sut.GetCart(context.Background(), "123")
			assert.NoError(t, err)
			assert.Len(t, ret.Items, 1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, repo.readCount(), 20)
}

func TestView_JoinsCatalog(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{
		{ProductID: "prod-2", Quantity: 2},
		{ProductID: "prod-gone", Quantity: 1},
		{ProductID: "prod-1", Quantity: 3},
	}}}

	lines, err := newTestService(repo, &mockCache{}).View(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, domain.RemoteItem{ID: "prod-2", Product: fern, Quantity: 2}, lines[0])
	assert.Equal(t, "prod-1", lines[1].ID)
	assert.Equal(t, "Neon Tetra", lines[1].Product.Name)
	assert.Equal(t, 3, lines[1].Quantity)
}

func TestView_CatalogError(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{{ProductID: "prod-1", Quantity: 1}}}}
	cat := newMockCatalog()
	cat.err = fmt.Errorf("catalog down")

	_, err := NewCartService(repo, &mockCache{}, cat, logger.Discard()).View(context.Background(), "123")
	require.ErrorContains(t, err, "catalog down")
}

func TestAddItem_AccumulatesAndInvalidates(t *testing.T) {
	repo := &mockRepository{}
	c := &mockCache{cart: &domain.Cart{UserID: "123"}}
	sut := newTestService(repo, c)
	ctx := context.Background()

	require.NoError(t, sut.AddItem(ctx, "123", "prod-1", 2))
	require.NoError(t, sut.AddItem(ctx, "123", "prod-1", 3))

	items := repo.items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Nil(t, c.getCart(), "cache was not invalidated")
}

func TestAddItem_UnknownProduct(t *testing.T) {
	repo := &mockRepository{}
	err := newTestService(repo, &mockCache{}).AddItem(context.Background(), "123", "prod-404", 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Empty(t, repo.items())
}

func TestAddItem_RepoError(t *testing.T) {
	repo := &mockRepository{err: fmt.Errorf("database error")}
	err := newTestService(repo, &mockCache{}).AddItem(context.Background(), "123", "prod-1", 5)
	require.ErrorContains(t, err, "database error")
}

func TestUpdateQuantity(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{{ProductID: "prod-1", Quantity: 5}}}}
	c := &mockCache{cart: &domain.Cart{UserID: "123"}}
	sut := newTestService(repo, c)

	require.NoError(t, sut.UpdateQuantity(context.Background(), "123", "prod-1", 20))
	assert.Equal(t, 20, repo.items()[0].Quantity)
	assert.Nil(t, c.getCart())

	err := sut.UpdateQuantity(context.Background(), "123", "prod-404", 1)
	assert.ErrorIs(t, err, repository.ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{
		{ProductID: "prod-1", Quantity: 5},
		{ProductID: "prod-2", Quantity: 10},
	}}}
	c := &mockCache{cart: &domain.Cart{UserID: "123"}}
	sut := newTestService(repo, c)

	require.NoError(t, sut.RemoveItem(context.Background(), "123", "prod-1"))
	items := repo.items()
	require.Len(t, items, 1)
	assert.Equal(t, "prod-2", items[0].ProductID)
	assert.Nil(t, c.getCart())

	assert.ErrorIs(t, sut.RemoveItem(context.Background(), "123", "prod-1"), repository.ErrItemNotFound)
}

func TestClearCart(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{UserID: "123", Items: []domain.StoredItem{{ProductID: "prod-1", Quantity: 5}}}}
	c := &mockCache{cart: &domain.Cart{UserID: "123"}}
	sut := newTestService(repo, c)

	require.NoError(t, sut.ClearCart(context.Background(), "123"))
	assert.Empty(t, repo.items())
	assert.Nil(t, c.getCart())

	// a missing cart is already clear
	require.NoError(t, sut.ClearCart(context.Background(), "123"))
}

func TestClearCart_RepoError(t *testing.T) {
	repo := &mockRepository{err: fmt.Errorf("database error")}
	err := newTestService(repo, &mockCache{}).ClearCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
}

func TestInvalidateFailureDoesNotFailMutation(t *testing.T) {
	repo := &mockRepository{}
	c := &mockCache{delErr: fmt.Errorf("redis down")}

	require.NoError(t, newTestService(repo, c).AddItem(context.Background(), "123", "prod-1", 1))
}

func TestGetCart_ReadOverlappingMutationDoesNotFillCache(t *testing.T) {
	repo := &mockRepository{}
	c := &mockCache{}
	sut := newTestService(repo, c)
	ctx := context.Background()

	require.NoError(t, sut.AddItem(ctx, "123", "prod-1", 1))

	readDone := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.afterRead = func() {
		once.Do(func() {
			close(readDone)
			<-release
		})
	}

	got := make(chan *domain.Cart, 1)
	go func() {
		cart, err := sut.GetCart(ctx, "123")
		assert.NoError(t, err)
		got <- cart
	}()

	<-readDone
	require.NoError(t, sut.AddItem(ctx, "123", "prod-2", 1))
	close(release)

	stale := <-got
	assert.Len(t, stale.Items, 1)
	assert.Nil(t, c.getCart(), "stale read filled the cache")

	lines, err := sut.View(ctx, "123")
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.NotNil(t, c.getCart())
}

func TestGetCart_CallAfterMutationDoesNotJoinEarlierRead(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo, &mockCache{})
	ctx := context.Background()

	require.NoError(t, sut.AddItem(ctx, "123", "prod-1", 1))

	readDone := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.afterRead = func() {
		once.Do(func() {
			close(readDone)
			<-release
		})
	}

	go func() {
		_, _ = sut.GetCart(ctx, "123")
	}()
	<-readDone

	require.NoError(t, sut.AddItem(ctx, "123", "prod-2", 1))
	cart, err := sut.GetCart(ctx, "123")
	close(release)

	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}
