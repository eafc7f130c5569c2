// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		quotaChecksTotal,
		promoQuotesTotal,
		promoDiscountCents,
		promoCodesActive,
		xpAwardedTotal,
		xpAwardsTotal,
	)
}

var (
	quotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_checks_total",
			Help: "Quota evaluations by plan, key and outcome.",
		},
		[]string{"plan", "key", "exceeded"},
	)

	promoQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_quotes_total",
			Help: "Promo quotes by outcome (applied, rejected, error).",
		},
		[]string{"result"},
	)

	promoDiscountCents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promo_discount_cents_total",
			Help: "Sum of quoted promo discounts in USD cents.",
		},
	)

	promoCodesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "promo_codes_active",
			Help: "Active promo codes, static and stored.",
		},
	)

	xpAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "XP written to the ledger per activity kind.",
		},
		[]string{"kind"},
	)

	xpAwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awards_total",
			Help: "Award attempts per kind and whether the daily cap truncated them.",
		},
		[]string{"kind", "capped"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func ObserveQuotaCheck(plan, key string, exceeded bool) {
	quotaChecksTotal.WithLabelValues(norm(plan), key, strconv.FormatBool(exceeded)).Inc()
}

func ObservePromoQuote(result string, discountCents int64) {
	promoQuotesTotal.WithLabelValues(norm(result)).Inc()
	if discountCents > 0 {
		promoDiscountCents.Add(float64(discountCents))
	}
}

func SetPromoCodesActive(n int) {
	promoCodesActive.Set(float64(n))
}

func ObserveXPAward(kind string, awarded int64, capped bool) {
	xpAwardsTotal.WithLabelValues(norm(kind), strconv.FormatBool(capped)).Inc()
	if awarded > 0 {
		xpAwardedTotal.WithLabelValues(norm(kind)).Add(float64(awarded))
	}
}
