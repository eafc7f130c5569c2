package model

import "strings"

// PlanID identifies a subscription tier.
type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanStarter PlanID = "starter"
	PlanBooster PlanID = "booster"
	PlanMaster  PlanID = "master"
)

// planRank is the total order over plans.
var planRank = map[PlanID]int{
	PlanFree:    0,
	PlanStarter: 1,
	PlanBooster: 2,
	PlanMaster:  3,
}

// ParsePlanID normalizes an incoming plan identifier.
func ParsePlanID(s string) (PlanID, bool) {
	id := PlanID(strings.ToLower(strings.TrimSpace(s)))
	_, ok := planRank[id]
	return id, ok
}

// Rank returns the plan's position in the order, or -1 when unknown.
func (p PlanID) Rank() int {
	if r, ok := planRank[p]; ok {
		return r
	}
	return -1
}

func (p PlanID) Valid() bool { return p.Rank() >= 0 }

type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleAnnual  Cycle = "annual"
)

func ParseCycle(s string) (Cycle, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return CycleMonthly, true
	case "annual", "yearly":
		return CycleAnnual, true
	}
	return "", false
}

type PaymentMethod string

const (
	MethodStripe    PaymentMethod = "stripe"
	MethodEasypaisa PaymentMethod = "easypaisa"
	MethodJazzCash  PaymentMethod = "jazzcash"
	MethodSafepay   PaymentMethod = "safepay"
	MethodCrypto    PaymentMethod = "crypto"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodStripe, MethodEasypaisa, MethodJazzCash, MethodSafepay, MethodCrypto:
		return m, true
	}
	return "", false
}

// QuotaKey identifies a metered feature.
type QuotaKey string

const (
	QuotaDailyMocks          QuotaKey = "dailyMocks"
	QuotaAIEvaluationsPerDay QuotaKey = "aiEvaluationsPerDay"
	QuotaStorageGB           QuotaKey = "storageGB"
)

var quotaLabels = map[QuotaKey]string{
	QuotaDailyMocks:          "daily mock tests",
	QuotaAIEvaluationsPerDay: "AI evaluations",
	QuotaStorageGB:           "storage (GB)",
}

func ParseQuotaKey(s string) (QuotaKey, bool) {
	k := QuotaKey(strings.TrimSpace(s))
	_, ok := quotaLabels[k]
	return k, ok
}

func (k QuotaKey) Label() string {
	if l, ok := quotaLabels[k]; ok {
		return l
	}
	return string(k)
}

type AIFeedbackTier string

const (
	AIFeedbackNone     AIFeedbackTier = "none"
	AIFeedbackBasic    AIFeedbackTier = "basic"
	AIFeedbackStandard AIFeedbackTier = "standard"
	AIFeedbackPriority AIFeedbackTier = "priority"
)

type AnalyticsTier string

const (
	AnalyticsNone     AnalyticsTier = "none"
	AnalyticsBasic    AnalyticsTier = "basic"
	AnalyticsAdvanced AnalyticsTier = "advanced"
)

// Entitlements are the capability flags attached to a plan.
type Entitlements struct {
	Library         bool           `json:"library" yaml:"library"`
	AIFeedback      AIFeedbackTier `json:"aiFeedback" yaml:"ai_feedback"`
	MockTests       Limit          `json:"mockTests" yaml:"mock_tests"`
	Analytics       AnalyticsTier  `json:"analytics" yaml:"analytics"`
	Proctoring      bool           `json:"proctoring" yaml:"proctoring"`
	PrioritySupport bool           `json:"prioritySupport" yaml:"priority_support"`
}

// Plan is an immutable catalog entry. Prices are USD cents; the annual
// price is the per-month equivalent shown on the pricing page.
type Plan struct {
	ID                PlanID             `json:"id" yaml:"id"`
	Label             string             `json:"label" yaml:"label"`
	PriceMonthlyCents int64              `json:"priceMonthlyCents" yaml:"price_monthly_cents"`
	PriceAnnualCents  int64              `json:"priceAnnualCents" yaml:"price_annual_cents"`
	Entitlements      Entitlements       `json:"entitlements" yaml:"entitlements"`
	Quotas            map[QuotaKey]Limit `json:"quotas" yaml:"quotas"`
}

// Limit returns the configured quota; a missing key denies.
func (p *Plan) Limit(key QuotaKey) Limit {
	if p == nil {
		return Finite(0)
	}
	if l, ok := p.Quotas[key]; ok {
		return l
	}
	return Finite(0)
}

// DefaultPlans is the shipped catalog, in rank order.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:    PlanFree,
			Label: "Free",
			Entitlements: Entitlements{
				AIFeedback: AIFeedbackNone,
				MockTests:  Finite(1),
				Analytics:  AnalyticsNone,
			},
			Quotas: map[QuotaKey]Limit{
				QuotaDailyMocks:          Finite(1),
				QuotaAIEvaluationsPerDay: Finite(2),
				QuotaStorageGB:           Finite(1),
			},
		},
		{
			ID:                PlanStarter,
			Label:             "Seedling",
			PriceMonthlyCents: 900,
			PriceAnnualCents:  800,
			Entitlements: Entitlements{
				Library:    true,
				AIFeedback: AIFeedbackBasic,
				MockTests:  Finite(4),
				Analytics:  AnalyticsBasic,
			},
			Quotas: map[QuotaKey]Limit{
				QuotaDailyMocks:          Finite(2),
				QuotaAIEvaluationsPerDay: Finite(5),
				QuotaStorageGB:           Finite(5),
			},
		},
		{
			ID:                PlanBooster,
			Label:             "Rocket",
			PriceMonthlyCents: 1900,
			PriceAnnualCents:  1600,
			Entitlements: Entitlements{
				Library:    true,
				AIFeedback: AIFeedbackStandard,
				MockTests:  Finite(20),
				Analytics:  AnalyticsAdvanced,
				Proctoring: true,
			},
			Quotas: map[QuotaKey]Limit{
				QuotaDailyMocks:          Finite(4),
				QuotaAIEvaluationsPerDay: Finite(20),
				QuotaStorageGB:           Finite(20),
			},
		},
		{
			ID:                PlanMaster,
			Label:             "Owl",
			PriceMonthlyCents: 3900,
			PriceAnnualCents:  3500,
			Entitlements: Entitlements{
				Library:         true,
				AIFeedback:      AIFeedbackPriority,
				MockTests:       Unlimited,
				Analytics:       AnalyticsAdvanced,
				Proctoring:      true,
				PrioritySupport: true,
			},
			Quotas: map[QuotaKey]Limit{
				QuotaDailyMocks:          Unlimited,
				QuotaAIEvaluationsPerDay: Unlimited,
				QuotaStorageGB:           Finite(100),
			},
		},
	}
}
