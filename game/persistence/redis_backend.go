package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
)

// RedisBackend implements Backend with one JSON string per map and a set of IDs
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend creates a backend on client. Keys are prefixed with keyPrefix
// ("warmap:" when empty).
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	if client == nil {
		panic("redis client cannot be nil for RedisBackend")
	}
	if keyPrefix == "" {
		keyPrefix = "warmap:"
	}
	return &RedisBackend{client: client, keyPrefix: keyPrefix}
}

// DialRedis connects to addr and verifies the connection
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to connect to %s: %w", addr, err)
	}
	return client, nil
}

func (rb *RedisBackend) mapKey(id string) string {
	return fmt.Sprintf("%smap:%s", rb.keyPrefix, id)
}

func (rb *RedisBackend) indexKey() string {
	return rb.keyPrefix + "maps"
}

// Save stores the record and indexes its ID
func (rb *RedisBackend) Save(ctx context.Context, rec Record) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal map %s: %w", rec.ID, err)
	}

	pipe := rb.client.TxPipeline()
	pipe.Set(ctx, rb.mapKey(rec.ID), data, 0)
	pipe.SAdd(ctx, rb.indexKey(), rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to save map %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads the record; a missing key is ErrMapNotFound
func (rb *RedisBackend) Load(ctx context.Context, id string) (Record, error) {
	if err := ValidateID(id); err != nil {
		return Record{}, err
	}
	data, err := rb.client.Get(ctx, rb.mapKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrMapNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis: failed to load map %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("redis: failed to unmarshal map %s: %w", id, err)
	}
	return rec, nil
}

// Delete drops the record and its index entry
func (rb *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	pipe := rb.client.TxPipeline()
	del := pipe.Del(ctx, rb.mapKey(id))
	pipe.SRem(ctx, rb.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to delete map %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrMapNotFound
	}
	return nil
}

// List returns the indexed IDs, sorted
func (rb *RedisBackend) List(ctx context.Context) ([]string, error) {
	ids, err := rb.client.SMembers(ctx, rb.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list maps: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
