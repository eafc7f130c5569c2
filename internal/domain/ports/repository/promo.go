package repository

import (
	"context"

	"gramorx-entitlements/internal/domain/model"
)

// PromoRepository is the port for admin-created promo codes.
// Codes are stored normalized; FindByCode returns domain.ErrNotFound on miss.
type PromoRepository interface {
	Save(ctx context.Context, tx Tx, rule *model.PromoRule) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoRule, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.PromoRule, error)
	SetActive(ctx context.Context, tx Tx, code string, active bool) error
}

// PromoCacheInvalidator is implemented by caching promo repositories.
// Use cases call it once a transactional write has committed.
type PromoCacheInvalidator interface {
	Invalidate(ctx context.Context, code string)
}
