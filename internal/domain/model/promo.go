package model

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFlat    DiscountType = "flat"
)

// Reasons shown verbatim by checkout.
const (
	PromoReasonInvalid  = "Enter a valid promo code."
	PromoReasonUnknown  = "Unknown promo code. Check the spelling and try again."
	PromoReasonInactive = "This promo code is no longer active."
	PromoReasonTooSmall = "Promo applies to larger totals. Add more to your order to use it."
)

// PromoAppliesTo narrows a rule; empty slices mean no constraint.
type PromoAppliesTo struct {
	Plans   []PlanID        `json:"plans,omitempty"`
	Cycles  []Cycle         `json:"cycles,omitempty"`
	Methods []PaymentMethod `json:"methods,omitempty"`
}

// PromoRule is a checkout-time discount keyed by a normalized code.
// Flat values are USD cents; percent values are 0..100.
type PromoRule struct {
	ID                    string         `json:"id,omitempty"`
	Code                  string         `json:"code"`
	Label                 string         `json:"label"`
	Description           string         `json:"description,omitempty"`
	Type                  DiscountType   `json:"type"`
	Value                 int64          `json:"value"`
	AppliesTo             PromoAppliesTo `json:"appliesTo"`
	StackableWithReferral bool           `json:"stackableWithReferral"`
	Notes                 string         `json:"notes,omitempty"`
	IsActive              bool           `json:"isActive"`
	CreatedAt             time.Time      `json:"createdAt"`
}

// PromoContext is the checkout state a rule is matched against.
type PromoContext struct {
	Plan   PlanID
	Cycle  Cycle
	Method PaymentMethod
}

type PromoEligibility struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

var promoCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// NormalizePromoCode upper-cases and strips whitespace; "" means invalid.
func NormalizePromoCode(raw string) string {
	code := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
	if !promoCodePattern.MatchString(code) {
		return ""
	}
	return code
}

// StaticPromoRules ship with the binary and resolve before the database.
func StaticPromoRules() []PromoRule {
	return []PromoRule{
		{
			Code:        "WELCOME10",
			Label:       "Welcome offer",
			Description: "10% off your first payment on any plan.",
			Type:        DiscountPercent,
			Value:       10,
			IsActive:    true,
		},
		{
			Code:        "ANNUAL20",
			Label:       "Annual saver",
			Description: "20% off when you pay yearly.",
			Type:        DiscountPercent,
			Value:       20,
			AppliesTo:   PromoAppliesTo{Cycles: []Cycle{CycleAnnual}},
			IsActive:    true,
		},
		{
			Code:                  "BOOSTER5",
			Label:                 "Rocket boost",
			Description:           "$5 off the Rocket plan.",
			Type:                  DiscountFlat,
			Value:                 500,
			AppliesTo:             PromoAppliesTo{Plans: []PlanID{PlanBooster}},
			StackableWithReferral: true,
			IsActive:              true,
		},
	}
}

// Validate checks the admin-editable fields of a rule.
func (r *PromoRule) Validate() error {
	if NormalizePromoCode(r.Code) == "" {
		return fmt.Errorf("code %q is not a valid promo code", r.Code)
	}
	switch r.Type {
	case DiscountPercent:
		if r.Value < 0 || r.Value > 100 {
			return fmt.Errorf("percent value must be within 0..100, got %d", r.Value)
		}
	case DiscountFlat:
		if r.Value < 0 {
			return fmt.Errorf("flat value must not be negative, got %d", r.Value)
		}
	default:
		return fmt.Errorf("unknown discount type %q", r.Type)
	}
	for _, p := range r.AppliesTo.Plans {
		if !p.Valid() {
			return fmt.Errorf("unknown plan %q", p)
		}
	}
	for _, c := range r.AppliesTo.Cycles {
		if _, ok := ParseCycle(string(c)); !ok {
			return fmt.Errorf("unknown cycle %q", c)
		}
	}
	for _, m := range r.AppliesTo.Methods {
		if _, ok := ParsePaymentMethod(string(m)); !ok {
			return fmt.Errorf("unknown payment method %q", m)
		}
	}
	return nil
}

// CheckPromoEligibility matches a rule against checkout state. An unset
// method is not checked; the method step re-runs the check.
func CheckPromoEligibility(r *PromoRule, c PromoContext) PromoEligibility {
	if r == nil {
		return PromoEligibility{Reason: PromoReasonUnknown}
	}
	if !r.IsActive {
		return PromoEligibility{Reason: PromoReasonInactive}
	}
	if len(r.AppliesTo.Plans) > 0 && !containsPlan(r.AppliesTo.Plans, c.Plan) {
		return PromoEligibility{Reason: fmt.Sprintf("Promo applies to %s plans only.", planList(r.AppliesTo.Plans))}
	}
	if len(r.AppliesTo.Cycles) > 0 && !containsCycle(r.AppliesTo.Cycles, c.Cycle) {
		return PromoEligibility{Reason: fmt.Sprintf("Promo applies to %s billing only.", cycleList(r.AppliesTo.Cycles))}
	}
	if c.Method != "" && len(r.AppliesTo.Methods) > 0 && !containsMethod(r.AppliesTo.Methods, c.Method) {
		return PromoEligibility{Reason: fmt.Sprintf("Promo is not available for %s payments.", c.Method)}
	}
	return PromoEligibility{OK: true}
}

// ComputePromoDiscount never returns less than 0 or more than amountCents.
func ComputePromoDiscount(r *PromoRule, amountCents int64) int64 {
	if r == nil || amountCents <= 0 || r.Value <= 0 {
		return 0
	}
	var d int64
	switch r.Type {
	case DiscountPercent:
		d = int64(math.Round(float64(amountCents) * float64(r.Value) / 100))
	case DiscountFlat:
		d = r.Value
	}
	if d > amountCents {
		d = amountCents
	}
	if d < 0 {
		d = 0
	}
	return d
}

// ExplainPromoRule renders a one-line summary for the promotions page.
func ExplainPromoRule(r *PromoRule) string {
	var b strings.Builder
	switch r.Type {
	case DiscountPercent:
		fmt.Fprintf(&b, "%d%% off", r.Value)
	default:
		fmt.Fprintf(&b, "$%.2f off", float64(r.Value)/100)
	}
	if len(r.AppliesTo.Plans) > 0 {
		fmt.Fprintf(&b, " %s plans", planList(r.AppliesTo.Plans))
	} else {
		b.WriteString(" any plan")
	}
	if len(r.AppliesTo.Cycles) > 0 {
		fmt.Fprintf(&b, " with %s billing", cycleList(r.AppliesTo.Cycles))
	}
	if len(r.AppliesTo.Methods) > 0 {
		names := make([]string, len(r.AppliesTo.Methods))
		for i, m := range r.AppliesTo.Methods {
			names[i] = string(m)
		}
		fmt.Fprintf(&b, " via %s", strings.Join(names, ", "))
	}
	b.WriteString(".")
	if r.StackableWithReferral {
		b.WriteString(" Stacks with referral codes.")
	}
	return b.String()
}

func containsPlan(ps []PlanID, p PlanID) bool {
	for _, v := range ps {
		if v == p {
			return true
		}
	}
	return false
}

func containsCycle(cs []Cycle, c Cycle) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}

func containsMethod(ms []PaymentMethod, m PaymentMethod) bool {
	for _, v := range ms {
		if v == m {
			return true
		}
	}
	return false
}

func planList(ps []PlanID) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		s := string(p)
		if s != "" {
			s = strings.ToUpper(s[:1]) + s[1:]
		}
		names[i] = s
	}
	return strings.Join(names, ", ")
}

func cycleList(cs []Cycle) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, " or ")
}
