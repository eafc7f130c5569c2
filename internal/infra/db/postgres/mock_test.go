//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
	red "gramorx-entitlements/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPromoRepo mocks the database repository that the promo decorator wraps.
type mockInnerPromoRepo struct {
	SaveFunc       func(ctx context.Context, tx repository.Tx, rule *model.PromoRule) error
	FindByCodeFunc func(ctx context.Context, tx repository.Tx, code string) (*model.PromoRule, error)
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.PromoRule, error)
	SetActiveFunc  func(ctx context.Context, tx repository.Tx, code string, active bool) error
}

func (m *mockInnerPromoRepo) Save(ctx context.Context, tx repository.Tx, rule *model.PromoRule) error {
	return m.SaveFunc(ctx, tx, rule)
}
func (m *mockInnerPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoRule, error) {
	return m.FindByCodeFunc(ctx, tx, code)
}
func (m *mockInnerPromoRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PromoRule, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerPromoRepo) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	return m.SetActiveFunc(ctx, tx, code, active)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like
// an empty cache.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error                     { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
