package domain

import "errors"

// ErrSessionExpired is returned by the remote cart client when the API answers 401.
var ErrSessionExpired = errors.New("session expired")

// CartItem is one product line in a client-side cart snapshot.
// The JSON shape is the persisted guest snapshot format.
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image"`
	Slug     string  `json:"slug"`
}

// Product is the catalog entry as it travels over the remote cart API.
type Product struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Images    []string `json:"images,omitempty"`
	Slug      string   `json:"slug"`
}

// ImageRef prefers the thumbnail and falls back to the first gallery image.
func (p Product) ImageRef() string {
	if p.Thumbnail != "" {
		return p.Thumbnail
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// RemoteItem is one line of the remote cart as returned by GET /api/cart.
type RemoteItem struct {
	ID       string  `json:"id,omitempty"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (r RemoteItem) ToCartItem() CartItem {
	return CartItem{
		ID:       r.Product.ID,
		Name:     r.Product.Name,
		Price:    r.Product.Price,
		Quantity: r.Quantity,
		Image:    r.Product.ImageRef(),
		Slug:     r.Product.Slug,
	}
}

func NewCartItem(p Product, quantity int) CartItem {
	return CartItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: quantity,
		Image:    p.ImageRef(),
		Slug:     p.Slug,
	}
}

// TotalItems sums quantities across the snapshot.
func TotalItems(items []CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums price * quantity across the snapshot.
func TotalPrice(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
