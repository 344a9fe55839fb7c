package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sproutmarket/internal/cart/models"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/sentinel"
)

const (
	// Redis key prefix for cart hashes: one hash per buyer, field per product.
	cartKeyPrefix = "cart:"
)

// RedisStore is the production cart store: hash `cart:{buyerID}` mapping
// product ID to a JSON item line, with a TTL so abandoned carts expire.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed cart store. ttl bounds cart lifetime
// and is refreshed on every write.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func cartKey(buyerID id.BuyerID) string {
	return cartKeyPrefix + buyerID.String()
}

func (s *RedisStore) Get(ctx context.Context, buyerID id.BuyerID) (models.Cart, error) {
	fields, err := s.client.HGetAll(ctx, cartKey(buyerID)).Result()
	if err != nil {
		return models.Cart{}, translateRedisErr("get cart", err)
	}

	lines := make(map[id.ProductID]models.Item, len(fields))
	for field, raw := range fields {
		var item models.Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return models.Cart{}, fmt.Errorf("decode cart item %s: %w", field, err)
		}
		lines[item.ProductID] = item
	}
	return assembleCart(buyerID, lines), nil
}

func (s *RedisStore) UpsertItem(ctx context.Context, buyerID id.BuyerID, item models.Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode cart item: %w", err)
	}

	key := cartKey(buyerID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, item.ProductID.String(), payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return translateRedisErr("upsert cart item", err)
	}
	return nil
}

func (s *RedisStore) RemoveItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID) (bool, error) {
	removed, err := s.client.HDel(ctx, cartKey(buyerID), productID.String()).Result()
	if err != nil {
		return false, translateRedisErr("remove cart item", err)
	}
	return removed > 0, nil
}

func (s *RedisStore) RemoveItems(ctx context.Context, buyerID id.BuyerID, productIDs []id.ProductID) error {
	if len(productIDs) == 0 {
		return nil
	}
	fields := make([]string, len(productIDs))
	for i, productID := range productIDs {
		fields[i] = productID.String()
	}
	if err := s.client.HDel(ctx, cartKey(buyerID), fields...).Err(); err != nil {
		return translateRedisErr("remove cart items", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, buyerID id.BuyerID) error {
	if err := s.client.Del(ctx, cartKey(buyerID)).Err(); err != nil {
		return translateRedisErr("clear cart", err)
	}
	return nil
}

// translateRedisErr maps driver failures onto sentinel errors at the store
// boundary so callers never branch on go-redis specifics.
func translateRedisErr(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, sentinel.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, sentinel.ErrUnavailable, err)
	}
}
