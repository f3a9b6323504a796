package datasource

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Mirror keeps a copy of fetched bytes so a resource stays readable when its
// source goes away. Entries have no TTL.
type Mirror interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, data []byte) error
	Clear(ctx context.Context) error
}

// RedisMirror stores resources in Redis under a key prefix.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// OpenRedisMirror connects to addr. An empty addr returns nil.
func OpenRedisMirror(addr, password string, db int, prefix string) *RedisMirror {
	if addr == "" {
		return nil
	}
	return NewRedisMirror(redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}), prefix)
}

// NewRedisMirror wraps an existing client.
func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	if prefix == "" {
		prefix = "riskmap:resource:"
	}
	return &RedisMirror{client: client, prefix: prefix}
}

// Ping checks the connection.
func (m *RedisMirror) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return eris.Wrap(err, "redis ping")
	}
	return nil
}

// Get returns the mirrored bytes for key.
func (m *RedisMirror) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

// Put stores data under key without expiry.
func (m *RedisMirror) Put(ctx context.Context, key string, data []byte) error {
	if err := m.client.Set(ctx, m.prefix+key, data, 0).Err(); err != nil {
		return eris.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Clear deletes every key under the mirror's prefix.
func (m *RedisMirror) Clear(ctx context.Context) error {
	iter := m.client.Scan(ctx, 0, m.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrap(err, "redis del")
	}
	return nil
}

// Close releases the client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
