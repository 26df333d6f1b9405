// Package catalog reads product data joined into remote cart lines.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrProductNotFound = errors.New("product not found")

//go:embed migrations/*.sql
var migrations embed.FS

type Catalog struct {
	db     *sql.DB
	driver string
}

// Open connects to the catalog database. driver is DriverSQLite or DriverPostgres.
func Open(ctx context.Context, driver, dsn string) (*Catalog, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Catalog{db: db, driver: driver}, nil
}

// Migrate applies the embedded schema and seed migrations.
func (c *Catalog) Migrate() error {
	var (
		driver database.Driver
		err    error
	)
	switch c.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(c.db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(c.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, c.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, price, thumbnail, images, slug
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, price, thumbnail, images, slug
		FROM products
		WHERE id = $1
	`, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return domain.Product{}, err
	}
	if len(products) == 0 {
		return domain.Product{}, ErrProductNotFound
	}
	return products[0], nil
}

// GetProducts returns the known products among ids keyed by id. Unknown ids are absent.
func (c *Catalog) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	found := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, name, price, thumbnail, images, slug
		FROM products
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		found[p.ID] = p
	}
	return found, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	var products []domain.Product
	for rows.Next() {
		var (
			p      domain.Product
			images string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Thumbnail, &images, &p.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if images != "" {
			if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
				return nil, fmt.Errorf("failed to decode images of product %s: %w", p.ID, err)
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}
