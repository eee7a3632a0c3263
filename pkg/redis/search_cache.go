package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const searchKeyPrefix = "search:"

// SearchCache keeps encoded search results in Redis so several host
// processes behind one Redis share upstream quota.
type SearchCache struct {
	client *redis.Client
}

func NewSearchCache(client *redis.Client) *SearchCache {
	return &SearchCache{client: client}
}

// NewClient connects and pings, so a bad address fails at start-up.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (s *SearchCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, searchKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get search results: %w", err)
	}
	return data, true, nil
}

func (s *SearchCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, searchKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store search results: %w", err)
	}
	return nil
}

func (s *SearchCache) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, searchKeyPrefix+key).Err()
}
