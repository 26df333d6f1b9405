package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

const cartTTL = 90 * 24 * time.Hour

// MongoRepository stores carts in the "carts" collection keyed by user_id.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	if cart.Items == nil {
		cart.Items = []domain.StoredItem{}
	}

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": bson.M{
		"user_id":    cart.UserID,
		"items":      cart.Items,
		"created_at": cart.CreatedAt,
		"updated_at": cart.UpdatedAt,
	}}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// AddItem increments an existing line in place and otherwise pushes a new
// line, upserting the cart. Both steps are single atomic updates so two
// concurrent adds of the same product never lose a quantity.
func (m *MongoRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	now := time.Now().UTC()

	for attempt := 0; attempt < 2; attempt++ {
		res, err := m.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.product_id": productID},
			bson.M{
				"$inc": bson.M{"items.$.quantity": quantity},
				"$set": bson.M{"items.$.added_at": now, "updated_at": now},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to increment item: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		item := domain.StoredItem{ProductID: productID, Quantity: quantity, AddedAt: now}
		_, err = m.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.product_id": bson.M{"$ne": productID}},
			bson.M{
				"$push":        bson.M{"items": item},
				"$set":         bson.M{"updated_at": now},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.Update().SetUpsert(true),
		)
		if err == nil {
			return nil
		}
		// another writer created the line between the two updates; increment it instead
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to add new item: %w", err)
		}
	}
	return fmt.Errorf("failed to add item %s: concurrent modification", productID)
}

func (m *MongoRepository) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}
	update := bson.M{
		"$set": bson.M{
			"items.$.quantity": quantity,
			"updated_at":       time.Now().UTC(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	filter := bson.M{"user_id": userID, "items.product_id": productID}
	update := bson.M{
		"$pull": bson.M{"items": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
