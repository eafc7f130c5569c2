package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/infra/metrics"
)

// ActivePromoLister is the slice of the promo use case the refresher needs.
type ActivePromoLister interface {
	ListActive(ctx context.Context) ([]*model.PromoRule, error)
}

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// PromoRefresher keeps the active promo cache warm and publishes the
// promo and pool gauges.
type PromoRefresher struct {
	interval time.Duration
	promos   ActivePromoLister
	pool     PoolStater
	log      *zerolog.Logger
}

func NewPromoRefresher(interval time.Duration, promos ActivePromoLister, pool PoolStater, logger *zerolog.Logger) *PromoRefresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "PromoRefresher").Logger()
	return &PromoRefresher{
		interval: interval,
		promos:   promos,
		pool:     pool,
		log:      &l,
	}
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (w *PromoRefresher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting promo refresher")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping promo refresher")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

func (w *PromoRefresher) Tick(ctx context.Context) {
	rules, err := w.promos.ListActive(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("promo refresh failed")
	} else {
		metrics.SetPromoCodesActive(len(rules))
		w.log.Debug().Int("active", len(rules)).Msg("promo cache refreshed")
	}

	if w.pool != nil {
		if st := w.pool.Stat(); st != nil {
			metrics.SetDBPoolStats(st.MaxConns(), st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
