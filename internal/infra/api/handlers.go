package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/infra/logging"
	red "gramorx-entitlements/internal/infra/redis"
	"gramorx-entitlements/internal/usecase"
)

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.plans.Get(r.Context(), chi.URLParam(r, "plan"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

func parsePlanKey(planRaw, keyRaw string) (model.PlanID, model.QuotaKey, error) {
	plan, ok := model.ParsePlanID(planRaw)
	if !ok {
		return "", "", fmt.Errorf("unknown plan %q: %w", planRaw, domain.ErrNotFound)
	}
	key, ok := model.ParseQuotaKey(keyRaw)
	if !ok {
		return "", "", fmt.Errorf("unknown quota key %q: %w", keyRaw, domain.ErrInvalidArgument)
	}
	return plan, key, nil
}

func (s *Server) evaluateQuota(w http.ResponseWriter, r *http.Request) {
	plan, key, err := parsePlanKey(chi.URLParam(r, "plan"), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	var used int64
	if raw := r.URL.Query().Get("used"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, fmt.Errorf("used must be a number: %w", domain.ErrInvalidArgument))
			return
		}
		used = model.NormalizeUsage(f)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"evaluation": s.quotas.Evaluate(plan, key, used),
		"advice":     s.quotas.UpgradeAdvice(plan, key, used),
	})
}

type consumeRequest struct {
	Plan   string  `json:"plan"`
	Key    string  `json:"key"`
	Used   float64 `json:"used"`
	Amount float64 `json:"amount"`
}

func (s *Server) consumeQuota(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	plan, key, err := parsePlanKey(req.Plan, req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	used := model.NormalizeUsage(req.Used)
	amount := model.NormalizeUsage(req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"canConsume": s.quotas.CanConsume(plan, key, used, amount),
		"projection": s.quotas.ApplyConsumption(plan, key, used, amount),
		"advice":     s.quotas.UpgradeAdvice(plan, key, used),
	})
}

type promoView struct {
	*model.PromoRule
	Explanation string `json:"explanation"`
}

func (s *Server) listPromos(w http.ResponseWriter, r *http.Request) {
	rules, err := s.promos.ListActive(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("list promos failed")
		writeError(w, err)
		return
	}
	out := make([]promoView, 0, len(rules))
	for _, rule := range rules {
		out = append(out, promoView{PromoRule: rule, Explanation: s.promos.Explain(rule)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"promos": out})
}

type quoteRequest struct {
	Code        string `json:"code"`
	Plan        string `json:"plan"`
	Cycle       string `json:"cycle"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amountCents"`
}

func (s *Server) quotePromo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, red.PromoQuoteKey(callerKey(r)))
		if err != nil {
			// Redis trouble must not block checkout.
			logging.With(ctx, s.log).Warn().Err(err).Msg("promo quote rate limiter unavailable")
		} else if !ok {
			writeError(w, fmt.Errorf("too many promo attempts, try again shortly: %w", domain.ErrRateLimited))
			return
		}
	}

	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	plan, ok := model.ParsePlanID(req.Plan)
	if !ok {
		writeError(w, fmt.Errorf("unknown plan %q: %w", req.Plan, domain.ErrInvalidArgument))
		return
	}
	cycle, ok := model.ParseCycle(req.Cycle)
	if !ok {
		writeError(w, fmt.Errorf("unknown cycle %q: %w", req.Cycle, domain.ErrInvalidArgument))
		return
	}
	var method model.PaymentMethod
	if req.Method != "" {
		if method, ok = model.ParsePaymentMethod(req.Method); !ok {
			writeError(w, fmt.Errorf("unknown payment method %q: %w", req.Method, domain.ErrInvalidArgument))
			return
		}
	}

	quote, err := s.promos.Quote(ctx, usecase.PromoQuoteRequest{
		Code:        req.Code,
		Plan:        plan,
		Cycle:       cycle,
		Method:      method,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// callerKey buckets anonymous callers by client address.
func callerKey(r *http.Request) string {
	if c, ok := ClaimsFrom(r.Context()); ok {
		return "user:" + c.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

type vocabXPRequest struct {
	Kind         string         `json:"kind"` // meaning|sentence|synonym
	Correct      bool           `json:"correct"`
	Score        int            `json:"score"`
	TotalTargets int            `json:"totalTargets"`
	NetCorrect   int            `json:"netCorrect"`
	ElapsedMs    int64          `json:"elapsedMs"`
	Meta         map[string]any `json:"meta"`
}

func (s *Server) awardVocabXP(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())

	var req vocabXPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		base  int64
		round *model.SynonymRound
	)
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	switch kind {
	case "meaning":
		base = model.BaseXPForMeaning(req.Correct)
	case "sentence":
		base = model.BaseXPForSentence(req.Score)
	case "synonym":
		sr := model.ComputeSynonymRound(req.TotalTargets, req.NetCorrect, time.Duration(req.ElapsedMs)*time.Millisecond)
		round = &sr
		base = sr.BaseXP
	default:
		writeError(w, fmt.Errorf("unknown xp kind %q: %w", req.Kind, domain.ErrInvalidArgument))
		return
	}

	res, err := s.xp.AwardVocabXP(r.Context(), usecase.AwardVocabXPRequest{
		UserID:     claims.Subject,
		BaseAmount: float64(base),
		Kind:       kind,
		Meta:       req.Meta,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"result": res, "dailyCap": s.xp.DailyCap()}
	if round != nil {
		body["synonymRound"] = round
	}
	writeJSON(w, http.StatusOK, body)
}

type writingPreviewRequest struct {
	CurrentOverall  float64    `json:"currentOverall"`
	PreviousOverall *float64   `json:"previousOverall"`
	StartedAt       *time.Time `json:"startedAt"`
	SubmittedAt     *time.Time `json:"submittedAt"`
	DurationSeconds int64      `json:"durationSeconds"`
}

func (s *Server) previewWritingXP(w http.ResponseWriter, r *http.Request) {
	var req writingPreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	xp := s.xp.PreviewWritingXP(model.WritingAttempt{
		CurrentOverall:  req.CurrentOverall,
		PreviousOverall: req.PreviousOverall,
		StartedAt:       req.StartedAt,
		SubmittedAt:     req.SubmittedAt,
		Duration:        time.Duration(req.DurationSeconds) * time.Second,
	})
	writeJSON(w, http.StatusOK, xp)
}

type createPromoRequest struct {
	Code                  string               `json:"code"`
	Label                 string               `json:"label"`
	Description           string               `json:"description"`
	Type                  model.DiscountType   `json:"type"`
	Value                 int64                `json:"value"`
	AppliesTo             model.PromoAppliesTo `json:"appliesTo"`
	StackableWithReferral bool                 `json:"stackableWithReferral"`
	Notes                 string               `json:"notes"`
	IsActive              *bool                `json:"isActive"`
}

func (s *Server) createPromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	active := req.IsActive == nil || *req.IsActive
	rule, err := s.promos.Create(r.Context(), &model.PromoRule{
		Code:                  req.Code,
		Label:                 req.Label,
		Description:           req.Description,
		Type:                  req.Type,
		Value:                 req.Value,
		AppliesTo:             req.AppliesTo,
		StackableWithReferral: req.StackableWithReferral,
		Notes:                 req.Notes,
		IsActive:              active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"promo": promoView{PromoRule: rule, Explanation: s.promos.Explain(rule)}})
}

type togglePromoRequest struct {
	IsActive *bool `json:"isActive"`
}

func (s *Server) togglePromo(w http.ResponseWriter, r *http.Request) {
	var req togglePromoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, fmt.Errorf("isActive is required: %w", domain.ErrInvalidArgument))
		return
	}
	rule, err := s.promos.SetActive(r.Context(), chi.URLParam(r, "code"), *req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promo": rule})
}
