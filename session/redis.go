package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	refreshPrefix     = "refresh:"
	refreshUserPrefix = "refresh_user:"
	revokedPrefix     = "revoked:"
	revokedUserPrefix = "revoked_user:"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStore(client), nil
}

func refreshKey(username, tokenID string) string {
	return refreshPrefix + username + ":" + tokenID
}

func (s *RedisStore) SaveRefresh(ctx context.Context, username, tokenID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKey(username, tokenID), "1", ttl)
	pipe.SAdd(ctx, refreshUserPrefix+username, tokenID)
	pipe.Expire(ctx, refreshUserPrefix+username, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) RefreshValid(ctx context.Context, username, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, refreshKey(username, tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) DropRefresh(ctx context.Context, username string) (int, error) {
	ids, err := s.client.SMembers(ctx, refreshUserPrefix+username).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, refreshKey(username, id))
	}
	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, refreshUserPrefix+username).Err(); err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedPrefix+tokenID, "1", ttl).Err()
}

func (s *RedisStore) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) RevokeUser(ctx context.Context, username string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedUserPrefix+username, at.Unix(), ttl).Err()
}

func (s *RedisStore) UserRevokedAt(ctx context.Context, username string) (time.Time, error) {
	v, err := s.client.Get(ctx, revokedUserPrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
