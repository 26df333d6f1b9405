package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotals(t *testing.T) {
	items := []CartItem{
		{ID: "prod-1", Price: 10000, Quantity: 3},
		{ID: "prod-2", Price: 20000, Quantity: 2},
	}
	assert.Equal(t, 5, TotalItems(items))
	assert.Equal(t, float64(70000), TotalPrice(items))
}

func TestTotals_Empty(t *testing.T) {
	assert.Equal(t, 0, TotalItems(nil))
	assert.Equal(t, float64(0), TotalPrice(nil))
}

func TestProductImageRef(t *testing.T) {
	assert.Equal(t, "/thumb.jpg", Product{Thumbnail: "/thumb.jpg", Images: []string{"/a.jpg"}}.ImageRef())
	assert.Equal(t, "/a.jpg", Product{Images: []string{"/a.jpg", "/b.jpg"}}.ImageRef())
	assert.Equal(t, "", Product{}.ImageRef())
}

func TestRemoteItemToCartItem(t *testing.T) {
	r := RemoteItem{
		Product: Product{
			ID:     "prod-1",
			Name:   "Neon Tetra",
			Price:  1500,
			Images: []string{"/tetra.jpg"},
			Slug:   "neon-tetra",
		},
		Quantity: 4,
	}
	assert.Equal(t, CartItem{
		ID:       "prod-1",
		Name:     "Neon Tetra",
		Price:    1500,
		Quantity: 4,
		Image:    "/tetra.jpg",
		Slug:     "neon-tetra",
	}, r.ToCartItem())
}
