package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golf-booking/internal/models"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cart cache miss")
	// ErrStaleCart is returned by Set when the session was invalidated after
	// the caller read its version.
	ErrStaleCart = errors.New("cart cache entry is stale")
)

// CartCache holds read-through copies of carts keyed by session id. Every
// Delete bumps the session's version; Set only stores a cart read under the
// version it is given, so a slow reader cannot put back a cart that a writer
// has since invalidated.
type CartCache interface {
	Get(ctx context.Context, sessionID string) (*models.Cart, error)
	Version(ctx context.Context, sessionID string) (int64, error)
	Set(ctx context.Context, sessionID string, cart *models.Cart, version int64) error
	Delete(ctx context.Context, sessionID string) error
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

func (r *RedisCache) Get(ctx context.Context, sessionID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Version reads the session's invalidation counter. A session never
// invalidated is at version 0.
func (r *RedisCache) Version(ctx context.Context, sessionID string) (int64, error) {
	v, err := r.client.Get(ctx, versionKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

// Set stores the cart with a jittered TTL so entries written together do not
// expire together. The write happens in a WATCH transaction on the version
// key and is dropped with ErrStaleCart if the version moved past version.
func (r *RedisCache) Set(ctx context.Context, sessionID string, cart *models.Cart, version int64) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey(sessionID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStaleCart
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(sessionID), data, r.baseTTL+jitter)
			return nil
		})
		return err
	}, versionKey(sessionID))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleCart), errors.Is(err, redis.TxFailedErr):
		return ErrStaleCart
	default:
		return fmt.Errorf("redis set failed: %w", err)
	}
}

// Delete drops the cached cart and bumps the version in one transaction. The
// version key lives longer than any cart entry.
func (r *RedisCache) Delete(ctx context.Context, sessionID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(sessionID))
		pipe.Expire(ctx, versionKey(sessionID), r.versionTTL())
		pipe.Del(ctx, cacheKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) versionTTL() time.Duration {
	return 2*r.baseTTL + 5*time.Minute
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func versionKey(sessionID string) string {
	return fmt.Sprintf("cart:%s:version", sessionID)
}

// NoopCache always misses. Used when no Redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*models.Cart, error) { return nil, ErrCacheMiss }
func (NoopCache) Version(context.Context, string) (int64, error) { return 0, nil }
func (NoopCache) Set(context.Context, string, *models.Cart, int64) error { return nil }
func (NoopCache) Delete(context.Context, string) error { return nil }
