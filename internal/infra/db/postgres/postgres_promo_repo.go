package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
)

var _ repository.PromoRepository = (*promoRepo)(nil)

type promoRepo struct {
	pool *pgxpool.Pool
}

func NewPromoRepo(pool *pgxpool.Pool) *promoRepo {
	return &promoRepo{pool: pool}
}

const promoColumns = `id, code, label, description, discount_type, discount_value, applies_to,
       stackable_with_referral, notes, is_active, created_at`

func (r *promoRepo) Save(ctx context.Context, tx repository.Tx, rule *model.PromoRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	applies, err := json.Marshal(rule.AppliesTo)
	if err != nil {
		return fmt.Errorf("encode applies_to: %w", err)
	}
	const q = `
INSERT INTO promo_codes (id, code, label, description, discount_type, discount_value, applies_to,
                         stackable_with_referral, notes, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11);`
	_, err = execSQL(ctx, r.pool, tx, q,
		rule.ID, rule.Code, rule.Label, rule.Description, string(rule.Type), rule.Value, applies,
		rule.StackableWithReferral, rule.Notes, rule.IsActive, rule.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save promo: %w", err)
	}
	return nil
}

func (r *promoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoRule, error) {
	q := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, fmt.Errorf("find promo: %w: %w", domain.ErrOperationFailed, err)
	}
	rule, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find promo: %w", err)
	}
	return rule, nil
}

func (r *promoRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PromoRule, error) {
	q := `SELECT ` + promoColumns + ` FROM promo_codes WHERE is_active = TRUE ORDER BY code ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var out []*model.PromoRule
	for rows.Next() {
		rule, err := scanPromo(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *promoRepo) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	const q = `UPDATE promo_codes SET is_active = $2, updated_at = now() WHERE code = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, code, active)
	if err != nil {
		return fmt.Errorf("set promo active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountActive feeds the promo_codes_active gauge.
func (r *promoRepo) CountActive(ctx context.Context) (int, error) {
	row, err := pickRow(ctx, r.pool, repository.NoTX, `SELECT count(*) FROM promo_codes WHERE is_active = TRUE;`)
	if err != nil {
		return 0, fmt.Errorf("count promos: %w: %w", domain.ErrOperationFailed, err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanPromo(row pgx.Row) (*model.PromoRule, error) {
	var (
		rule    model.PromoRule
		typ     string
		applies []byte
	)
	if err := row.Scan(
		&rule.ID, &rule.Code, &rule.Label, &rule.Description, &typ, &rule.Value, &applies,
		&rule.StackableWithReferral, &rule.Notes, &rule.IsActive, &rule.CreatedAt,
	); err != nil {
		return nil, err
	}
	rule.Type = model.DiscountType(typ)
	if len(applies) > 0 {
		if err := json.Unmarshal(applies, &rule.AppliesTo); err != nil {
			return nil, fmt.Errorf("decode applies_to: %w", err)
		}
	}
	return &rule, nil
}
