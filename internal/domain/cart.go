package domain

import "time"

// Cart is the server-side document stored per authenticated user.
type Cart struct {
	ID        string       `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string       `bson:"user_id" json:"user_id"`
	Items     []StoredItem `bson:"items" json:"items"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
}

type StoredItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}
