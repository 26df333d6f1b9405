package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresCatalog(t *testing.T) *Catalog {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("catalog"),
		postgres.WithPassword("catalog"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	c, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Migrate())
	return c
}

func TestPostgresCatalog(t *testing.T) {
	c := setupPostgresCatalog(t)
	ctx := context.Background()

	t.Run("seeded products", func(t *testing.T) {
		products, err := c.ListProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 6)
	})

	t.Run("get product", func(t *testing.T) {
		p, err := c.GetProduct(ctx, "prod-6")
		require.NoError(t, err)
		assert.Equal(t, "Aquasoil 9L", p.Name)
		assert.Equal(t, float64(320000), p.Price)
		assert.Len(t, p.Images, 2)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := c.GetProduct(ctx, "prod-404")
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("batch lookup", func(t *testing.T) {
		found, err := c.GetProducts(ctx, []string{"prod-1", "prod-404", "prod-3"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Equal(t, "Cherry Shrimp", found["prod-3"].Name)
	})

	t.Run("migrate again", func(t *testing.T) {
		require.NoError(t, c.Migrate())
	})
}
