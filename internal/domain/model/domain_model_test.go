//go:build !integration

package model

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gramorx-entitlements/internal/domain"
)

// --- Limit Tests ---

func TestLimitOrdering(t *testing.T) {
	t.Run("unlimited dominates every finite limit", func(t *testing.T) {
		for _, n := range []int64{0, 1, math.MaxInt64} {
			if !Unlimited.Greater(Finite(n)) {
				t.Errorf("expected Unlimited > %d", n)
			}
			if Finite(n).Greater(Unlimited) {
				t.Errorf("expected %d < Unlimited", n)
			}
		}
		if Unlimited.Compare(Unlimited) != 0 {
			t.Error("Unlimited should equal itself")
		}
	})

	t.Run("finite arithmetic", func(t *testing.T) {
		if Finite(-4) != Finite(0) {
			t.Error("negative finite limits should clamp to zero")
		}
		if Finite(3).Sub(5) != Finite(0) {
			t.Error("Sub must not go negative")
		}
		if !Unlimited.Sub(1 << 50).IsUnlimited() {
			t.Error("Unlimited minus anything stays Unlimited")
		}
		if !Finite(2).Covers(2) || Finite(2).Covers(3) {
			t.Error("Covers is wrong at the boundary")
		}
	})
}

func TestLimitJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Limit{"a": Finite(4), "b": Unlimited})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":4,"b":"unlimited"}` {
		t.Fatalf("unexpected encoding %s", b)
	}
	var got map[string]Limit
	if err := json.Unmarshal([]byte(`{"a":4,"b":"Unlimited","c":"7"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["a"] != Finite(4) || !got["b"].IsUnlimited() || got["c"] != Finite(7) {
		t.Fatalf("unexpected decode %+v", got)
	}
	var l Limit
	if err := json.Unmarshal([]byte(`-1`), &l); err == nil {
		t.Error("expected an error for a negative limit")
	}
}

func TestNormalizeUsage(t *testing.T) {
	cases := map[float64]int64{
		math.NaN():   0,
		math.Inf(1):  0,
		math.Inf(-1): 0,
		-3:           0,
		2.9:          2,
		5:            5,
	}
	for in, want := range cases {
		if got := NormalizeUsage(in); got != want {
			t.Errorf("NormalizeUsage(%v) = %d, want %d", in, got, want)
		}
	}
}

// --- Catalog Tests ---

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()

	t.Run("rank order", func(t *testing.T) {
		order := c.Order()
		for i := 1; i < len(order); i++ {
			if order[i-1].Rank() >= order[i].Rank() {
				t.Fatalf("order is not strictly increasing: %v", order)
			}
		}
	})

	t.Run("missing key degrades to zero", func(t *testing.T) {
		if c.Limit(PlanMaster, "videoMinutes") != Finite(0) {
			t.Error("unknown key should read as Finite(0)")
		}
		if c.Limit("gold", QuotaDailyMocks) != Finite(0) {
			t.Error("unknown plan should read as Finite(0)")
		}
	})

	t.Run("rejects bad tables", func(t *testing.T) {
		dup := append(DefaultPlans(), Plan{ID: PlanFree})
		if _, err := NewCatalog(dup); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("duplicate: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := NewCatalog([]Plan{{ID: "gold"}}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("unknown id: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := NewCatalog(nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("empty: expected ErrInvalidArgument, got %v", err)
		}
		bad := []Plan{{ID: PlanFree, Quotas: map[QuotaKey]Limit{"minutes": Finite(1)}}}
		if _, err := NewCatalog(bad); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("unknown quota: expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("billing amounts", func(t *testing.T) {
		if got, _ := c.BillingAmountCents(PlanBooster, CycleAnnual); got != 19200 {
			t.Errorf("booster annual: expected 19200, got %d", got)
		}
		if _, err := c.BillingAmountCents("gold", CycleMonthly); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLoadCatalogYAML(t *testing.T) {
	body := `
plans:
  - id: master
    label: Owl
    price_monthly_cents: 3900
    price_annual_cents: 3500
    quotas:
      dailyMocks: unlimited
      storageGB: 100
  - id: free
    label: Free
    quotas:
      dailyMocks: 1
  - id: booster
    label: Booster
    price_monthly_cents: 1900
  - id: starter
    label: Starter
    price_monthly_cents: 900
`
	path := filepath.Join(t.TempDir(), "plans.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	want := []PlanID{PlanFree, PlanStarter, PlanBooster, PlanMaster}
	if order := c.Order(); len(order) != len(want) || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] || order[3] != want[3] {
		t.Fatalf("expected rank order %v, got %v", want, order)
	}
	if !c.Limit(PlanMaster, QuotaDailyMocks).IsUnlimited() {
		t.Error("expected unlimited daily mocks for master")
	}
	if c.Limit(PlanFree, QuotaStorageGB) != Finite(0) {
		t.Error("unconfigured quota should deny")
	}
	if _, err := ParseCatalog([]byte("plans:\n  - id: free\n    quotas:\n      dailyMocks: -2\n")); err == nil {
		t.Error("expected an error for a negative limit")
	}
	subset := "plans:\n  - id: free\n  - id: master\n"
	if _, err := ParseCatalog([]byte(subset)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("partial table: expected ErrInvalidArgument, got %v", err)
	}
	if d, err := LoadCatalog(""); err != nil || len(d.Plans()) != 4 {
		t.Errorf("empty path should give the default catalog, got %v", err)
	}
}

// --- Promo Tests ---

func TestNormalizePromoCode(t *testing.T) {
	cases := map[string]string{
		" welcome10 ":  "WELCOME10",
		"spring 25":    "SPRING25",
		"ab":           "",
		"no$symbols":   "",
		"early-bird_2": "EARLY-BIRD_2",
		strings.Repeat("A", 33): "",
	}
	for in, want := range cases {
		if got := NormalizePromoCode(in); got != want {
			t.Errorf("NormalizePromoCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckPromoEligibility(t *testing.T) {
	rule := &PromoRule{
		Code: "MIX", Type: DiscountPercent, Value: 10, IsActive: true,
		AppliesTo: PromoAppliesTo{
			Plans:   []PlanID{PlanStarter, PlanBooster},
			Cycles:  []Cycle{CycleAnnual},
			Methods: []PaymentMethod{MethodEasypaisa},
		},
	}

	ok := CheckPromoEligibility(rule, PromoContext{Plan: PlanStarter, Cycle: CycleAnnual, Method: MethodEasypaisa})
	if !ok.OK || ok.Reason != "" {
		t.Fatalf("expected eligible, got %+v", ok)
	}

	reasons := map[string]PromoEligibility{
		"plan":   CheckPromoEligibility(rule, PromoContext{Plan: PlanMaster, Cycle: CycleAnnual}),
		"cycle":  CheckPromoEligibility(rule, PromoContext{Plan: PlanStarter, Cycle: CycleMonthly}),
		"method": CheckPromoEligibility(rule, PromoContext{Plan: PlanStarter, Cycle: CycleAnnual, Method: MethodCrypto}),
	}
	seen := map[string]bool{}
	for name, e := range reasons {
		if e.OK || e.Reason == "" {
			t.Errorf("%s: expected a failure with a reason, got %+v", name, e)
		}
		if seen[e.Reason] {
			t.Errorf("%s: reason %q is not distinct", name, e.Reason)
		}
		seen[e.Reason] = true
	}
	if got := reasons["plan"].Reason; got != "Promo applies to Starter, Booster plans only." {
		t.Errorf("unexpected plan reason %q", got)
	}

	rule.IsActive = false
	if e := CheckPromoEligibility(rule, PromoContext{Plan: PlanStarter, Cycle: CycleAnnual}); e.Reason != PromoReasonInactive {
		t.Errorf("expected inactive reason, got %+v", e)
	}
}

func TestComputePromoDiscount(t *testing.T) {
	cases := []struct {
		rule   PromoRule
		amount int64
		want   int64
	}{
		{PromoRule{Type: DiscountPercent, Value: 10}, 2000, 200},
		{PromoRule{Type: DiscountFlat, Value: 500}, 300, 300},
		{PromoRule{Type: DiscountPercent, Value: 100}, 900, 900},
		{PromoRule{Type: DiscountPercent, Value: 0}, 900, 0},
		{PromoRule{Type: DiscountFlat, Value: 500}, -10, 0},
		{PromoRule{Type: "bogus", Value: 500}, 900, 0},
	}
	for _, tc := range cases {
		got := ComputePromoDiscount(&tc.rule, tc.amount)
		if got != tc.want {
			t.Errorf("%s %d on %d: expected %d, got %d", tc.rule.Type, tc.rule.Value, tc.amount, tc.want, got)
		}
		if got < 0 || (tc.amount > 0 && got > tc.amount) {
			t.Errorf("discount %d escapes [0, %d]", got, tc.amount)
		}
	}
}

// --- XP Tests ---

func TestDayWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	t.Run("DST spring forward day is 23 hours", func(t *testing.T) {
		w, err := DayWindow(ny, "2026-03-08", time.Time{})
		if err != nil {
			t.Fatalf("DayWindow: %v", err)
		}
		if got := w.End.Sub(w.Start); got != 23*time.Hour {
			t.Fatalf("expected 23h, got %v", got)
		}
		if !w.Start.Equal(time.Date(2026, 3, 8, 5, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %v", w.Start)
		}
	})

	t.Run("now selects the local day", func(t *testing.T) {
		now := time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC) // 22:00 on June 30 in New York
		w, err := DayWindow(ny, "", now)
		if err != nil {
			t.Fatalf("DayWindow: %v", err)
		}
		if w.DayISO != "2026-06-30" || !w.Contains(now) {
			t.Fatalf("unexpected window %+v", w)
		}
		if w.Contains(w.End) {
			t.Fatal("window end is exclusive")
		}
	})

	t.Run("bad override", func(t *testing.T) {
		if _, err := DayWindow(time.UTC, "2026-13-01", time.Now()); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestXPRules(t *testing.T) {
	if MultiplierForPlan(PlanFree) != 1 || MultiplierForPlan(PlanBooster) != 1.25 || MultiplierForPlan("gold") != 1 {
		t.Error("unexpected plan multipliers")
	}
	if RequestedXP(10, 1.0) != 10 || RequestedXP(math.NaN(), 1.5) != 0 || RequestedXP(-5, 1.5) != 0 {
		t.Error("unexpected requested XP")
	}
	if got := RequestedXP(1e300, 1.5); got != math.MaxInt64 {
		t.Errorf("huge base should saturate, got %d", got)
	}
	if got := RequestedXP(math.MaxInt64, 1.0); got != math.MaxInt64 {
		t.Errorf("MaxInt64 base should saturate, got %d", got)
	}
	if BaseXPForMeaning(true) != 10 || BaseXPForMeaning(false) != 0 {
		t.Error("unexpected meaning XP")
	}
	if BaseXPForSentence(2) != 15 || BaseXPForSentence(3) != 20 {
		t.Error("unexpected sentence XP")
	}

	t.Run("synonym round", func(t *testing.T) {
		r := ComputeSynonymRound(5, 5, 15*time.Second) // 3s per target
		if r.Accuracy != 1 || r.Score != 100 || r.BaseXP != 10 {
			t.Fatalf("unexpected perfect round %+v", r)
		}
		r = ComputeSynonymRound(4, 2, 40*time.Second) // 10s per target
		if r.Score != 46 || r.BaseXP != 5 {
			t.Fatalf("unexpected half round %+v", r)
		}
		r = ComputeSynonymRound(0, 3, time.Minute)
		if r.Accuracy != 0 || r.Score != 0 || r.BaseXP != 0 {
			t.Fatalf("unexpected empty round %+v", r)
		}
	})

	t.Run("writing attempt", func(t *testing.T) {
		start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
		end := start.Add(2 * time.Hour)
		got := CalculateWritingXP(WritingAttempt{CurrentOverall: 6, StartedAt: &start, SubmittedAt: &end})
		if got.Points != 20 || got.Reason != "Completed writing mock exam" {
			t.Fatalf("unexpected result %+v", got)
		}
		prev := 5.5
		end = start.Add(45 * time.Minute)
		got = CalculateWritingXP(WritingAttempt{CurrentOverall: 6, PreviousOverall: &prev, StartedAt: &start, SubmittedAt: &end})
		if got.Points != 35 || strings.Count(got.Reason, " · ") != 2 {
			t.Fatalf("unexpected result %+v", got)
		}
	})
}
