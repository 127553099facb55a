// Package cache — список отозванных токенов (denylist) по jti.
// Запись живёт не дольше оставшегося срока жизни токена.
package cache

//go:generate mockgen -source=cache.go -destination=../../mocks/mock_cache.go -package=mocks

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist — минимальный контракт хранилища отозванных токенов.
type Denylist interface {
	// Revoke помечает jti отозванным на ttl. ttl <= 0 — no-op (токен уже истёк).
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked сообщает, отозван ли jti.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Close освобождает ресурсы.
	Close() error
}

type redisDenylist struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisDenylist создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:deny:".
func NewRedisDenylist(ctx context.Context, redisURL, prefix string) (Denylist, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return NewRedisDenylistFromClient(rdb, prefix), nil
}

// NewRedisDenylistFromClient оборачивает готовый клиент.
func NewRedisDenylistFromClient(rdb *redis.Client, prefix string) Denylist {
	if prefix == "" {
		prefix = "auth:deny:"
	}

	return &redisDenylist{rdb: rdb, prefix: prefix}
}

func (d *redisDenylist) key(jti string) string { return d.prefix + jti }

func (d *redisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	return d.rdb.Set(ctx, d.key(jti), "1", ttl).Err()
}

func (d *redisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (d *redisDenylist) Close() error { return d.rdb.Close() }

type memoryDenylist struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemoryDenylist — denylist в памяти процесса (env=local и тесты).
// Истёкшие записи вычищаются лениво при обращении.
func NewMemoryDenylist(now func() time.Time) Denylist {
	if now == nil {
		now = time.Now
	}

	return &memoryDenylist{now: now, entries: make(map[string]time.Time)}
}

func (d *memoryDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[jti] = d.now().Add(ttl)
	d.sweepLocked()

	return nil
}

func (d *memoryDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.entries[jti]
	if !ok {
		return false, nil
	}

	if !d.now().Before(exp) {
		delete(d.entries, jti)
		return false, nil
	}

	return true, nil
}

func (d *memoryDenylist) sweepLocked() {
	now := d.now()
	for jti, exp := range d.entries {
		if !now.Before(exp) {
			delete(d.entries, jti)
		}
	}
}

func (d *memoryDenylist) Close() error { return nil }
