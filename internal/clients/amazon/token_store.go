package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps the current access token in Redis so every replica reuses it
type RedisTokenStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisTokenStore creates a store keyed by the LWA client id
func NewRedisTokenStore(client *redis.Client, clientID string) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		key:    fmt.Sprintf("amazon:lwa:token:%s", clientID),
		now:    time.Now,
	}
}

// Load returns the stored token or nil on a miss
func (s *RedisTokenStore) Load(ctx context.Context) (*Token, error) {
	if s.client == nil {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Save stores the token until it expires
func (s *RedisTokenStore) Save(ctx context.Context, token *Token) error {
	if s.client == nil || token == nil {
		return nil
	}

	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, ttl).Err()
}

// Delete removes the stored token
func (s *RedisTokenStore) Delete(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key).Err()
}
