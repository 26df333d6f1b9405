package repository

import (
	"context"

	"github.com/aquavo/fishweb-cart/internal/domain"
)

// CartRepository persists one cart document per authenticated user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	// AddItem adds quantity to the product's line, creating the line or cart when absent.
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	DeleteCart(ctx context.Context, userID string) error
}
