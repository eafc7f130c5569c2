package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
	"gramorx-entitlements/internal/infra/metrics"
	red "gramorx-entitlements/internal/infra/redis"
)

var (
	_ repository.PromoRepository       = (*promoRepoCacheDecorator)(nil)
	_ repository.PromoCacheInvalidator = (*promoRepoCacheDecorator)(nil)
)

// recordCacheRequest is swapped in tests.
var recordCacheRequest = metrics.IncCacheRequest

const (
	promoActiveKey = "promos:active"
	// promoMissMarker caches a not-found so typo'd codes stay off Postgres.
	promoMissMarker = "-"
)

type promoRepoCacheDecorator struct {
	inner repository.PromoRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPromoRepoCacheDecorator(inner repository.PromoRepository, cache red.RedisClient, ttl time.Duration) repository.PromoRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &promoRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func promoKey(code string) string { return fmt.Sprintf("promo:%s", code) }

// Reads inside a transaction bypass the cache.
func (d *promoRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoRule, error) {
	if tx != nil {
		return d.inner.FindByCode(ctx, tx, code)
	}
	key := promoKey(code)
	result := "miss"
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil && val == promoMissMarker:
		recordCacheRequest("promo", "hit")
		return nil, domain.ErrNotFound
	case err == nil:
		var rule model.PromoRule
		if json.Unmarshal([]byte(val), &rule) == nil {
			recordCacheRequest("promo", "hit")
			return &rule, nil
		}
	case !red.IsMiss(err):
		result = "error"
	}
	recordCacheRequest("promo", result)

	rule, err := d.inner.FindByCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		_ = d.cache.Set(ctx, key, promoMissMarker, d.ttl/4)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(rule); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return rule, nil
}

func (d *promoRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PromoRule, error) {
	if tx != nil {
		return d.inner.ListActive(ctx, tx)
	}
	result := "miss"
	val, err := d.cache.Get(ctx, promoActiveKey)
	if err == nil {
		var rules []*model.PromoRule
		if json.Unmarshal([]byte(val), &rules) == nil {
			recordCacheRequest("promo_list", "hit")
			return rules, nil
		}
	} else if !red.IsMiss(err) {
		result = "error"
	}
	recordCacheRequest("promo_list", result)

	rules, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(rules); err == nil {
		_ = d.cache.Set(ctx, promoActiveKey, b, d.ttl)
	}
	return rules, nil
}

// Writes outside a transaction invalidate at once. Inside one, a concurrent
// reader could re-cache the pre-commit row, so the caller must call
// Invalidate after the commit.
func (d *promoRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, rule *model.PromoRule) error {
	if err := d.inner.Save(ctx, tx, rule); err != nil {
		return err
	}
	if tx == nil {
		d.Invalidate(ctx, rule.Code)
	}
	return nil
}

func (d *promoRepoCacheDecorator) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	if err := d.inner.SetActive(ctx, tx, code, active); err != nil {
		return err
	}
	if tx == nil {
		d.Invalidate(ctx, code)
	}
	return nil
}

// Invalidate drops the code entry, including a cached miss, and the active list.
func (d *promoRepoCacheDecorator) Invalidate(ctx context.Context, code string) {
	_ = d.cache.Del(ctx, promoKey(code), promoActiveKey)
}
