package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/tahat-market/shop-api/internal/domain/cart"
)

// cartTTL bounds how long an abandoned cart survives.
const cartTTL = 30 * 24 * time.Hour

var _ cart.Storage = (*CartStorage)(nil)

// CartStorage persists one session's cart entries as a JSON blob under a
// per-session key.
type CartStorage struct {
	client    *redis.Client
	sessionID string
}

// NewCartStorage returns the storage slot for the given session.
func NewCartStorage(client *redis.Client, sessionID string) *CartStorage {
	return &CartStorage{client: client, sessionID: sessionID}
}

func (s *CartStorage) key() string {
	return "cart:" + s.sessionID
}

// Load reads the persisted entry list. A missing key yields an empty cart.
func (s *CartStorage) Load(ctx context.Context) ([]cart.Entry, error) {
	data, err := s.client.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load cart")
	}

	var entries []cart.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return entries, nil
}

// Save overwrites the persisted entry list and refreshes the TTL.
func (s *CartStorage) Save(ctx context.Context, entries []cart.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.client.Set(ctx, s.key(), data, cartTTL).Err(); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}
