package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
	"gramorx-entitlements/internal/infra/logging"
	"gramorx-entitlements/internal/infra/metrics"
)

// PromoQuoteRequest is the checkout state a code is quoted against.
// AmountCents <= 0 means the catalog billing amount for Plan and Cycle.
type PromoQuoteRequest struct {
	Code        string              `json:"code"`
	Plan        model.PlanID        `json:"plan"`
	Cycle       model.Cycle         `json:"cycle"`
	Method      model.PaymentMethod `json:"method,omitempty"`
	AmountCents int64               `json:"amountCents,omitempty"`
}

type PromoQuote struct {
	Code          string           `json:"code"`
	Rule          *model.PromoRule `json:"rule,omitempty"`
	Eligible      bool             `json:"eligible"`
	Reason        string           `json:"reason,omitempty"`
	SubtotalCents int64            `json:"subtotalCents"`
	DiscountCents int64            `json:"discountCents"`
	TotalCents    int64            `json:"totalCents"`
}

// PromoUseCase resolves, validates and prices promo codes.
type PromoUseCase interface {
	// Resolve checks the static table first, then the repository.
	// Unknown codes return domain.ErrNotFound; malformed ones ErrInvalidArgument.
	Resolve(ctx context.Context, code string) (*model.PromoRule, error)

	CheckEligibility(rule *model.PromoRule, c model.PromoContext) model.PromoEligibility
	ComputeDiscount(rule *model.PromoRule, amountCents int64) int64

	// Quote never reports lookup misses as errors; they surface as Reason.
	Quote(ctx context.Context, req PromoQuoteRequest) (*PromoQuote, error)

	Create(ctx context.Context, rule *model.PromoRule) (*model.PromoRule, error)
	SetActive(ctx context.Context, code string, active bool) (*model.PromoRule, error)
	// ListActive merges static and stored rules; stored rules win on code.
	ListActive(ctx context.Context) ([]*model.PromoRule, error)
	Explain(rule *model.PromoRule) string
}

var _ PromoUseCase = (*promoUC)(nil)

type promoUC struct {
	promos  repository.PromoRepository
	tx      repository.TransactionManager
	catalog *model.Catalog
	static  map[string]model.PromoRule
	log     *zerolog.Logger
	now     Clock
}

// NewPromoUseCase wires the engine. promos and tx may be nil, in which
// case only the static table resolves.
func NewPromoUseCase(
	promos repository.PromoRepository,
	tx repository.TransactionManager,
	catalog *model.Catalog,
	logger *zerolog.Logger,
	now Clock,
) PromoUseCase {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	static := make(map[string]model.PromoRule)
	for _, r := range model.StaticPromoRules() {
		static[r.Code] = r
	}
	return &promoUC{
		promos:  promos,
		tx:      tx,
		catalog: catalog,
		static:  static,
		log:     orNop(logger),
		now:     orNow(now),
	}
}

func (p *promoUC) Resolve(ctx context.Context, code string) (*model.PromoRule, error) {
	norm := model.NormalizePromoCode(code)
	if norm == "" {
		return nil, domain.ErrInvalidArgument
	}
	if r, ok := p.static[norm]; ok {
		cp := r
		return &cp, nil
	}
	if p.promos == nil {
		return nil, domain.ErrNotFound
	}
	rule, err := p.promos.FindByCode(ctx, repository.NoTX, norm)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}
	return rule, nil
}

func (p *promoUC) CheckEligibility(rule *model.PromoRule, c model.PromoContext) model.PromoEligibility {
	return model.CheckPromoEligibility(rule, c)
}

func (p *promoUC) ComputeDiscount(rule *model.PromoRule, amountCents int64) int64 {
	return model.ComputePromoDiscount(rule, amountCents)
}

func (p *promoUC) Quote(ctx context.Context, req PromoQuoteRequest) (*PromoQuote, error) {
	defer logging.TraceDuration(p.log, "PromoUC.Quote")()

	q, err := p.quote(ctx, req)
	switch {
	case err != nil:
		metrics.ObservePromoQuote("error", 0)
	case q.Eligible:
		metrics.ObservePromoQuote("applied", q.DiscountCents)
	default:
		metrics.ObservePromoQuote("rejected", 0)
	}
	return q, err
}

func (p *promoUC) quote(ctx context.Context, req PromoQuoteRequest) (*PromoQuote, error) {
	subtotal := req.AmountCents
	if subtotal <= 0 {
		amt, err := p.catalog.BillingAmountCents(req.Plan, req.Cycle)
		if err != nil {
			return nil, fmt.Errorf("billing amount for %s/%s: %w", req.Plan, req.Cycle, domain.ErrInvalidArgument)
		}
		subtotal = amt
	}
	q := &PromoQuote{
		Code:          model.NormalizePromoCode(req.Code),
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
	}
	if q.Code == "" {
		q.Reason = model.PromoReasonInvalid
		return q, nil
	}

	rule, err := p.Resolve(ctx, q.Code)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		q.Reason = model.PromoReasonUnknown
		return q, nil
	case err != nil:
		logging.With(ctx, p.log).Error().Err(err).Str("code", q.Code).Msg("promo lookup failed")
		return nil, err
	}
	q.Rule = rule

	elig := p.CheckEligibility(rule, model.PromoContext{Plan: req.Plan, Cycle: req.Cycle, Method: req.Method})
	if !elig.OK {
		q.Reason = elig.Reason
		return q, nil
	}

	discount := p.ComputeDiscount(rule, subtotal)
	if discount <= 0 {
		q.Reason = model.PromoReasonTooSmall
		return q, nil
	}
	q.Eligible = true
	q.DiscountCents = discount
	q.TotalCents = max(subtotal-discount, 0)
	return q, nil
}

func (p *promoUC) Create(ctx context.Context, rule *model.PromoRule) (*model.PromoRule, error) {
	defer logging.TraceDuration(p.log, "PromoUC.Create")()

	if rule == nil {
		return nil, domain.ErrInvalidArgument
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidArgument)
	}
	if p.promos == nil {
		return nil, domain.ErrOperationFailed
	}
	rec := *rule
	rec.Code = model.NormalizePromoCode(rule.Code)
	if _, ok := p.static[rec.Code]; ok {
		return nil, domain.ErrAlreadyExists
	}
	if rec.Label == "" {
		rec.Label = rec.Code
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = p.now().UTC()

	err := runInTx(ctx, p.tx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := p.promos.FindByCode(ctx, tx, rec.Code)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyExists
		}
		return p.promos.Save(ctx, tx, &rec)
	})
	if err != nil {
		return nil, err
	}
	p.invalidate(ctx, rec.Code)
	p.log.Info().Str("code", rec.Code).Str("type", string(rec.Type)).Int64("value", rec.Value).Msg("promo code created")
	return &rec, nil
}

func (p *promoUC) SetActive(ctx context.Context, code string, active bool) (*model.PromoRule, error) {
	norm := model.NormalizePromoCode(code)
	if norm == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, ok := p.static[norm]; ok {
		return nil, fmt.Errorf("static promo %s is read-only: %w", norm, domain.ErrForbidden)
	}
	if p.promos == nil {
		return nil, domain.ErrNotFound
	}
	var out *model.PromoRule
	err := runInTx(ctx, p.tx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := p.promos.SetActive(ctx, tx, norm, active); err != nil {
			return err
		}
		r, err := p.promos.FindByCode(ctx, tx, norm)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.invalidate(ctx, norm)
	p.log.Info().Str("code", norm).Bool("active", active).Msg("promo code toggled")
	return out, nil
}

// invalidate runs after commit so no reader can re-cache the old row.
func (p *promoUC) invalidate(ctx context.Context, code string) {
	if inv, ok := p.promos.(repository.PromoCacheInvalidator); ok {
		inv.Invalidate(ctx, code)
	}
}

func (p *promoUC) ListActive(ctx context.Context) ([]*model.PromoRule, error) {
	byCode := make(map[string]*model.PromoRule, len(p.static))
	for code, r := range p.static {
		if r.IsActive {
			cp := r
			byCode[code] = &cp
		}
	}
	if p.promos != nil {
		remote, err := p.promos.ListActive(ctx, repository.NoTX)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		for _, r := range remote {
			byCode[r.Code] = r
		}
	}
	out := make([]*model.PromoRule, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (p *promoUC) Explain(rule *model.PromoRule) string {
	if rule == nil {
		return ""
	}
	return model.ExplainPromoRule(rule)
}
