//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
	"gramorx-entitlements/internal/usecase"
)

type xpDeps struct {
	ledger   *MockXPLedger
	profiles *MockProfileRepo
	tm       *MockTxManager
	now      time.Time
}

func newXPDeps() *xpDeps {
	return &xpDeps{
		ledger:   NewMockXPLedger(),
		profiles: &MockProfileRepo{Plans: map[string]model.PlanID{}},
		tm:       NewMockTxManager(),
		now:      time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
	}
}

func (d *xpDeps) uc(loc *time.Location) usecase.XPUseCase {
	return usecase.NewXPUseCase(d.ledger, d.profiles, d.tm, usecase.XPOptions{
		DailyCap: 60,
		Location: loc,
		Now:      fixedClock(d.now),
	}, testLogger())
}

func TestXPUseCase_AwardVocabXP(t *testing.T) {
	ctx := context.Background()

	t.Run("truncates at the daily cap", func(t *testing.T) {
		d := newXPDeps()
		d.ledger.Seed("u1", 55, d.now.Add(-time.Hour))

		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 10, Kind: "meaning"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Requested != 10 || res.Awarded != 5 || !res.Capped || res.TotalToday != 60 || res.Multiplier != 1 {
			t.Fatalf("unexpected result: %+v", res)
		}
		if d.ledger.Count() != 2 {
			t.Fatalf("expected exactly one new ledger row, have %d", d.ledger.Count())
		}
		ev := d.ledger.Events[1]
		if ev.Amount != 5 || ev.Source != "vocab" || ev.ID == "" {
			t.Errorf("unexpected event: %+v", ev)
		}
		for _, k := range []string{"kind", "baseAmount", "multiplier", "day", "capped"} {
			if _, ok := ev.Meta[k]; !ok {
				t.Errorf("meta missing %q: %v", k, ev.Meta)
			}
		}
		if ev.Meta["day"] != "2026-05-10" || ev.Meta["capped"] != true {
			t.Errorf("unexpected provenance: %v", ev.Meta)
		}
		if len(d.ledger.Locks) != 1 || d.ledger.Locks[0] != "u1|2026-05-10" {
			t.Errorf("expected one day lock, got %v", d.ledger.Locks)
		}
	})

	t.Run("at cap writes nothing", func(t *testing.T) {
		d := newXPDeps()
		d.ledger.Seed("u1", 60, d.now.Add(-time.Minute))

		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 15, Kind: "sentence"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Awarded != 0 || !res.Capped || res.TotalToday != 60 {
			t.Fatalf("unexpected result: %+v", res)
		}
		if d.ledger.Count() != 1 {
			t.Fatalf("no row should be written at cap, have %d", d.ledger.Count())
		}
	})

	t.Run("log even if zero writes a zero row", func(t *testing.T) {
		d := newXPDeps()
		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 0, Kind: "meaning", LogEvenIfZero: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Awarded != 0 || res.Capped || d.ledger.Count() != 1 || d.ledger.Events[0].Amount != 0 {
			t.Fatalf("expected a single zero row, got %+v rows=%d", res, d.ledger.Count())
		}
	})

	t.Run("negative base requests nothing", func(t *testing.T) {
		d := newXPDeps()
		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: -20, Kind: "meaning"})
		if err != nil || res.Requested != 0 || res.Capped || d.ledger.Count() != 0 {
			t.Fatalf("unexpected result %+v err=%v rows=%d", res, err, d.ledger.Count())
		}
	})

	t.Run("plan multiplier from profile", func(t *testing.T) {
		d := newXPDeps()
		d.profiles.Plans["u2"] = model.PlanMaster
		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u2", BaseAmount: 15, Kind: "sentence"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// round(15 * 1.5) = 23
		if res.Multiplier != 1.5 || res.Requested != 23 || res.Awarded != 23 || res.Capped {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("explicit plan overrides profile", func(t *testing.T) {
		d := newXPDeps()
		d.profiles.Plans["u2"] = model.PlanMaster
		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u2", BaseAmount: 10, Kind: "meaning", PlanID: model.PlanStarter})
		if err != nil || res.Multiplier != 1.1 || res.Requested != 11 {
			t.Fatalf("unexpected result %+v err=%v", res, err)
		}
	})

	t.Run("profile failure degrades to free", func(t *testing.T) {
		d := newXPDeps()
		d.profiles.Err = errors.New("profiles unavailable")
		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u3", BaseAmount: 10, Kind: "meaning"})
		if err != nil || res.Multiplier != 1 || res.Awarded != 10 {
			t.Fatalf("unexpected result %+v err=%v", res, err)
		}
	})

	t.Run("insert failure surfaces the store error", func(t *testing.T) {
		d := newXPDeps()
		boom := errors.New("insert violates constraint")
		d.ledger.InsertFunc = func(ctx context.Context, tx repository.Tx, ev *model.XPEvent) error { return boom }
		_, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 10, Kind: "meaning"})
		if !errors.Is(err, boom) || !strings.Contains(err.Error(), "insert violates constraint") {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})

	t.Run("history read failure is an error", func(t *testing.T) {
		d := newXPDeps()
		d.ledger.SumBetweenFunc = func(ctx context.Context, tx repository.Tx, userID string, start, end time.Time) (int64, error) {
			return 0, domain.ErrOperationFailed
		}
		if _, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 10, Kind: "meaning"}); !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		if d.ledger.Count() != 0 {
			t.Fatal("nothing should be written")
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		d := newXPDeps()
		uc := d.uc(time.UTC)
		for _, req := range []usecase.AwardVocabXPRequest{
			{UserID: "", BaseAmount: 10, Kind: "meaning"},
			{UserID: "u1", BaseAmount: 10, Kind: " "},
			{UserID: "u1", BaseAmount: 10, Kind: "meaning", DayISO: "10/05/2026"},
		} {
			if _, err := uc.AwardVocabXP(ctx, req); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%+v: expected ErrInvalidArgument, got %v", req, err)
			}
		}
	})
}

func TestXPUseCase_DayWindow(t *testing.T) {
	ctx := context.Background()
	karachi := time.FixedZone("PKT", 5*3600)

	t.Run("local day boundaries", func(t *testing.T) {
		d := newXPDeps()
		d.now = time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC) // 01:00 on the 11th in PKT
		d.ledger.Seed("u1", 50, time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)) // the 10th in PKT
		d.ledger.Seed("u1", 40, time.Date(2026, 5, 10, 19, 30, 0, 0, time.UTC)) // 00:30 on the 11th in PKT

		res, err := d.uc(karachi).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 30, Kind: "meaning"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.DayISO != "2026-05-11" || res.Awarded != 20 || res.TotalToday != 60 {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("day override", func(t *testing.T) {
		d := newXPDeps()
		d.ledger.Seed("u1", 58, time.Date(2026, 5, 9, 12, 0, 0, 0, time.UTC))

		res, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 10, Kind: "meaning", DayISO: "2026-05-09"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.DayISO != "2026-05-09" || res.Awarded != 2 {
			t.Fatalf("unexpected result: %+v", res)
		}
		last := d.ledger.Events[len(d.ledger.Events)-1]
		if got := last.CreatedAt; !got.Equal(time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("override row should land inside the window, got %v", got)
		}
	})

	t.Run("day override outside today and yesterday is rejected", func(t *testing.T) {
		for _, day := range []string{"2026-05-11", "2026-06-01", "2026-05-08", "2025-05-10"} {
			d := newXPDeps()
			_, err := d.uc(time.UTC).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 10, Kind: "meaning", DayISO: day})
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%s: expected ErrInvalidArgument, got %v", day, err)
			}
			if len(d.ledger.Locks) != 0 || len(d.ledger.Events) != 0 {
				t.Errorf("%s: rejected override touched the ledger", day)
			}
		}
	})

	t.Run("day override follows the configured location", func(t *testing.T) {
		// 09:30 UTC is still 2026-05-09 in Honolulu.
		loc := time.FixedZone("HST", -10*3600)
		d := newXPDeps()
		res, err := d.uc(loc).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 10, Kind: "meaning", DayISO: "2026-05-08"})
		if err != nil || res.DayISO != "2026-05-08" {
			t.Fatalf("yesterday in zone: got %+v err=%v", res, err)
		}
		if _, err := d.uc(loc).AwardVocabXP(ctx, usecase.AwardVocabXPRequest{UserID: "u2", BaseAmount: 10, Kind: "meaning", DayISO: "2026-05-10"}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("tomorrow in zone: expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestXPUseCase_ConcurrentAwardsRespectCap(t *testing.T) {
	d := newXPDeps()
	uc := d.uc(time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.AwardVocabXP(context.Background(), usecase.AwardVocabXPRequest{UserID: "u1", BaseAmount: 7, Kind: "meaning"}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, ev := range d.ledger.Events {
		total += ev.Amount
	}
	if total != 60 {
		t.Fatalf("expected the ledger to sum to the cap, got %d", total)
	}
	if d.tm.Calls != 20 {
		t.Fatalf("every award should run in a transaction, got %d", d.tm.Calls)
	}
}

func TestXPUseCase_PreviewWritingXP(t *testing.T) {
	uc := newXPDeps().uc(time.UTC)
	prev := 6.0
	got := uc.PreviewWritingXP(model.WritingAttempt{CurrentOverall: 6.5, PreviousOverall: &prev, Duration: 50 * time.Minute})
	if got.Points != 35 {
		t.Fatalf("expected 35 points, got %+v", got)
	}
	if uc.DailyCap() != 60 {
		t.Fatalf("expected cap 60, got %d", uc.DailyCap())
	}
}
