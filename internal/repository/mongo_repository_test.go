package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) *MongoRepository {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))
	return repo
}

func TestMongoRepository(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	t.Run("get missing cart", func(t *testing.T) {
		cart, err := repo.GetCart(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("add creates cart", func(t *testing.T) {
		require.NoError(t, repo.AddItem(ctx, "user-new", "prod-1", 3))

		cart, err := repo.GetCart(ctx, "user-new")
		require.NoError(t, err)
		assert.Equal(t, "user-new", cart.UserID)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "prod-1", cart.Items[0].ProductID)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.False(t, cart.CreatedAt.IsZero())
	})

	t.Run("add accumulates quantity", func(t *testing.T) {
		require.NoError(t, repo.AddItem(ctx, "user-acc", "prod-1", 2))
		require.NoError(t, repo.AddItem(ctx, "user-acc", "prod-1", 5))
		require.NoError(t, repo.AddItem(ctx, "user-acc", "prod-2", 1))

		cart, err := repo.GetCart(ctx, "user-acc")
		require.NoError(t, err)
		require.Len(t, cart.Items, 2)
		assert.Equal(t, 7, cart.Items[0].Quantity)
		assert.Equal(t, 1, cart.Items[1].Quantity)
	})

	t.Run("concurrent adds keep every unit", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.AddItem(ctx, "user-race", "prod-1", 1))
			}()
		}
		wg.Wait()

		cart, err := repo.GetCart(ctx, "user-race")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 10, cart.Items[0].Quantity)
	})

	t.Run("update quantity", func(t *testing.T) {
		require.NoError(t, repo.AddItem(ctx, "user-upd", "prod-1", 2))
		require.NoError(t, repo.UpdateItemQuantity(ctx, "user-upd", "prod-1", 10))

		cart, err := repo.GetCart(ctx, "user-upd")
		require.NoError(t, err)
		assert.Equal(t, 10, cart.Items[0].Quantity)

		err = repo.UpdateItemQuantity(ctx, "user-upd", "prod-404", 1)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("remove item", func(t *testing.T) {
		require.NoError(t, repo.AddItem(ctx, "user-rm", "prod-1", 2))
		require.NoError(t, repo.AddItem(ctx, "user-rm", "prod-2", 3))
		require.NoError(t, repo.RemoveItem(ctx, "user-rm", "prod-1"))

		cart, err := repo.GetCart(ctx, "user-rm")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "prod-2", cart.Items[0].ProductID)

		assert.ErrorIs(t, repo.RemoveItem(ctx, "user-rm", "prod-1"), ErrItemNotFound)
	})

	t.Run("upsert replaces items", func(t *testing.T) {
		cart := &domain.Cart{UserID: "user-ups", Items: []domain.StoredItem{{ProductID: "prod-3", Quantity: 4}}}
		require.NoError(t, repo.UpsertCart(ctx, cart))

		got, err := repo.GetCart(ctx, "user-ups")
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "prod-3", got.Items[0].ProductID)
	})

	t.Run("delete cart", func(t *testing.T) {
		require.NoError(t, repo.AddItem(ctx, "user-del", "prod-1", 2))
		require.NoError(t, repo.DeleteCart(ctx, "user-del"))

		_, err := repo.GetCart(ctx, "user-del")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.ErrorIs(t, repo.DeleteCart(ctx, "user-del"), ErrCartNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(10 * time.Millisecond)

		_, err := repo.GetCart(ctx, "user-new")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "context")
	})
}
