package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
	"gramorx-entitlements/internal/infra/logging"
	"gramorx-entitlements/internal/infra/metrics"
)

const xpSourceVocab = "vocab"

// AwardVocabXPRequest describes one qualifying vocabulary action.
// PlanID and DayISO are optional overrides for trusted callers. DayISO
// must name today or yesterday in the use case location.
type AwardVocabXPRequest struct {
	UserID        string
	BaseAmount    float64
	Kind          string
	PlanID        model.PlanID
	DayISO        string
	Meta          map[string]any
	LogEvenIfZero bool
}

// XPUseCase awards plan-scaled XP under a per-day cap.
type XPUseCase interface {
	// AwardVocabXP appends at most one ledger row. Awards beyond the cap
	// are truncated and reported through Capped.
	AwardVocabXP(ctx context.Context, req AwardVocabXPRequest) (*model.AwardXPResult, error)
	PreviewWritingXP(a model.WritingAttempt) model.WritingXP
	DailyCap() int64
}

var _ XPUseCase = (*xpUC)(nil)

type xpUC struct {
	ledger   repository.XPLedgerRepository
	profiles repository.ProfileRepository
	tx       repository.TransactionManager
	cap      int64
	loc      *time.Location
	log      *zerolog.Logger
	now      Clock
}

type XPOptions struct {
	DailyCap int64
	Location *time.Location
	Now      Clock
}

func NewXPUseCase(
	ledger repository.XPLedgerRepository,
	profiles repository.ProfileRepository,
	tx repository.TransactionManager,
	opts XPOptions,
	logger *zerolog.Logger,
) XPUseCase {
	if opts.DailyCap <= 0 {
		opts.DailyCap = model.DefaultDailyVocabXPCap
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &xpUC{
		ledger:   ledger,
		profiles: profiles,
		tx:       tx,
		cap:      opts.DailyCap,
		loc:      opts.Location,
		log:      orNop(logger),
		now:      orNow(opts.Now),
	}
}

func (x *xpUC) DailyCap() int64 { return x.cap }

// overridable reports whether win is today or yesterday relative to now.
func (x *xpUC) overridable(win model.Window, now time.Time) bool {
	today, _ := model.DayWindow(x.loc, "", now)
	yesterday, _ := model.DayWindow(x.loc, "", today.Start.Add(-time.Minute))
	return win.DayISO == today.DayISO || win.DayISO == yesterday.DayISO
}

func (x *xpUC) AwardVocabXP(ctx context.Context, req AwardVocabXPRequest) (*model.AwardXPResult, error) {
	defer logging.TraceDuration(x.log, "XPUC.AwardVocabXP")()

	userID := strings.TrimSpace(req.UserID)
	kind := strings.TrimSpace(req.Kind)
	if userID == "" || kind == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := x.now()
	win, err := model.DayWindow(x.loc, req.DayISO, now)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidArgument)
	}
	if req.DayISO != "" && !x.overridable(win, now) {
		return nil, fmt.Errorf("day %s is outside the award window: %w", win.DayISO, domain.ErrInvalidArgument)
	}

	plan := x.resolvePlan(ctx, userID, req.PlanID)
	multiplier := model.MultiplierForPlan(plan)
	requested := model.RequestedXP(req.BaseAmount, multiplier)

	res := &model.AwardXPResult{
		Requested:  requested,
		Multiplier: multiplier,
		DayISO:     win.DayISO,
	}

	// The advisory lock serializes concurrent awards for the same user and
	// day, so the sum read below stays valid until the insert commits.
	err = runInTx(ctx, x.tx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := x.ledger.LockDay(ctx, tx, userID, win.DayISO); err != nil {
			return fmt.Errorf("lock xp day: %w", err)
		}
		total, err := x.ledger.SumBetween(ctx, tx, userID, win.Start, win.End)
		if err != nil {
			return fmt.Errorf("load xp history: %w", err)
		}
		total = max(0, total)

		awarded := max(0, min(requested, x.cap-total))
		res.Awarded = awarded
		res.Capped = awarded < requested
		res.TotalToday = min(x.cap, total+awarded)

		if awarded == 0 && !req.LogEvenIfZero {
			return nil
		}

		createdAt := now.UTC()
		if !win.Contains(createdAt) {
			createdAt = win.Start
		}
		ev := &model.XPEvent{
			ID:        ulid.Make().String(),
			UserID:    userID,
			Amount:    awarded,
			Source:    xpSourceVocab,
			Meta:      x.provenance(req, kind, plan, multiplier, win.DayISO, res.Capped),
			CreatedAt: createdAt,
		}
		if err := x.ledger.Insert(ctx, tx, ev); err != nil {
			return fmt.Errorf("record xp event: %w", err)
		}
		return nil
	})
	if err != nil {
		logging.With(ctx, x.log).Error().Err(err).Str("user_id", userID).Str("kind", kind).Msg("xp award failed")
		return nil, err
	}
	metrics.ObserveXPAward(kind, res.Awarded, res.Capped)

	logging.With(ctx, x.log).Debug().
		Str("user_id", userID).
		Str("kind", kind).
		Int64("requested", res.Requested).
		Int64("awarded", res.Awarded).
		Bool("capped", res.Capped).
		Msg("xp awarded")
	return res, nil
}

func (x *xpUC) PreviewWritingXP(a model.WritingAttempt) model.WritingXP {
	return model.CalculateWritingXP(a)
}

// resolvePlan never fails; any lookup problem means the free plan.
func (x *xpUC) resolvePlan(ctx context.Context, userID string, override model.PlanID) model.PlanID {
	if id, ok := model.ParsePlanID(string(override)); ok {
		return id
	}
	if x.profiles == nil {
		return model.PlanFree
	}
	plan, err := x.profiles.PlanForUser(ctx, repository.NoTX, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			x.log.Warn().Err(err).Str("user_id", userID).Msg("plan lookup failed, using free")
		}
		return model.PlanFree
	}
	if id, ok := model.ParsePlanID(string(plan)); ok {
		return id
	}
	return model.PlanFree
}

func (x *xpUC) provenance(req AwardVocabXPRequest, kind string, plan model.PlanID, multiplier float64, day string, capped bool) map[string]any {
	meta := make(map[string]any, len(req.Meta)+6)
	for k, v := range req.Meta {
		meta[k] = v
	}
	meta["kind"] = kind
	meta["baseAmount"] = req.BaseAmount
	meta["multiplier"] = multiplier
	meta["plan"] = string(plan)
	meta["day"] = day
	meta["capped"] = capped
	return meta
}
