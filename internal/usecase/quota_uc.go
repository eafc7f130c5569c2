package usecase

import (
	"fmt"

	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/infra/metrics"
)

// QuotaUseCase evaluates plan quotas against caller-supplied usage.
// Methods are deterministic and never fail; unknown plans or keys evaluate
// against a zero limit.
type QuotaUseCase interface {
	Evaluate(plan model.PlanID, key model.QuotaKey, used int64) model.QuotaEvaluation

	// CanConsume reports whether max(1, amount) more units fit.
	CanConsume(plan model.PlanID, key model.QuotaKey, used, amount int64) bool

	// ApplyConsumption projects the evaluation after consuming max(1, amount).
	// Exceeded on the projection means the consumption overdraws the limit.
	ApplyConsumption(plan model.PlanID, key model.QuotaKey, used, amount int64) model.QuotaEvaluation

	// NextPlanForQuota returns the first higher-ranked plan with a strictly
	// greater limit for key.
	NextPlanForQuota(plan model.PlanID, key model.QuotaKey) (model.PlanID, bool)

	UpgradeAdvice(plan model.PlanID, key model.QuotaKey, used int64) model.UpgradeAdvice
}

var _ QuotaUseCase = (*quotaUC)(nil)

type quotaUC struct {
	catalog *model.Catalog
}

func NewQuotaUseCase(catalog *model.Catalog) QuotaUseCase {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	return &quotaUC{catalog: catalog}
}

func (q *quotaUC) Evaluate(plan model.PlanID, key model.QuotaKey, used int64) model.QuotaEvaluation {
	ev := q.evaluate(plan, key, used)
	metrics.ObserveQuotaCheck(string(plan), string(key), ev.Exceeded)
	return ev
}

func (q *quotaUC) evaluate(plan model.PlanID, key model.QuotaKey, used int64) model.QuotaEvaluation {
	used = max(0, used)
	limit := q.catalog.Limit(plan, key)
	return model.QuotaEvaluation{
		Limit:       limit,
		Used:        used,
		Remaining:   limit.Sub(used),
		Exceeded:    !limit.IsUnlimited() && used >= limit.Value(),
		IsUnlimited: limit.IsUnlimited(),
	}
}

func (q *quotaUC) CanConsume(plan model.PlanID, key model.QuotaKey, used, amount int64) bool {
	ev := q.evaluate(plan, key, used)
	return ev.IsUnlimited || ev.Remaining.Covers(max(1, amount))
}

func (q *quotaUC) ApplyConsumption(plan model.PlanID, key model.QuotaKey, used, amount int64) model.QuotaEvaluation {
	amount = max(1, amount)
	before := q.evaluate(plan, key, used)
	after := before.Used + amount
	if after < before.Used {
		after = before.Used // overflow
	}
	return model.QuotaEvaluation{
		Limit:       before.Limit,
		Used:        after,
		Remaining:   before.Limit.Sub(after),
		Exceeded:    !before.IsUnlimited && !before.Remaining.Covers(amount),
		IsUnlimited: before.IsUnlimited,
	}
}

func (q *quotaUC) NextPlanForQuota(plan model.PlanID, key model.QuotaKey) (model.PlanID, bool) {
	order := q.catalog.Order()
	idx := -1
	for i, id := range order {
		if id == plan {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	current := q.catalog.Limit(plan, key)
	for _, id := range order[idx+1:] {
		if q.catalog.Limit(id, key).Greater(current) {
			return id, true
		}
	}
	return "", false
}

func (q *quotaUC) UpgradeAdvice(plan model.PlanID, key model.QuotaKey, used int64) model.UpgradeAdvice {
	ev := q.Evaluate(plan, key, used)
	advice := model.UpgradeAdvice{NeededNow: ev.Exceeded}

	if next, ok := q.NextPlanForQuota(plan, key); ok {
		advice.NextPlan = &next
	}
	advice.Message = q.adviceMessage(plan, key, ev, advice.NextPlan)
	return advice
}

func (q *quotaUC) adviceMessage(plan model.PlanID, key model.QuotaKey, ev model.QuotaEvaluation, next *model.PlanID) string {
	label := key.Label()
	if ev.IsUnlimited {
		return fmt.Sprintf("Your %s plan includes unlimited %s.", q.planLabel(plan), label)
	}
	switch {
	case ev.Exceeded && next != nil:
		return fmt.Sprintf("You have used all %s %s on the %s plan. Upgrade to %s for %s.",
			ev.Limit, label, q.planLabel(plan), q.planLabel(*next), q.catalog.Limit(*next, key))
	case ev.Exceeded:
		return fmt.Sprintf("You have used all %s %s on the %s plan.", ev.Limit, label, q.planLabel(plan))
	case next != nil:
		return fmt.Sprintf("%s of %s %s left. %s raises this to %s.",
			ev.Remaining, ev.Limit, label, q.planLabel(*next), q.catalog.Limit(*next, key))
	}
	return fmt.Sprintf("%s of %s %s left.", ev.Remaining, ev.Limit, label)
}

func (q *quotaUC) planLabel(id model.PlanID) string {
	if p, ok := q.catalog.Plan(id); ok && p.Label != "" {
		return p.Label
	}
	return string(id)
}
