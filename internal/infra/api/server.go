package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gramorx-entitlements/internal/infra/metrics"
	"gramorx-entitlements/internal/usecase"
)

// Limiter admits or rejects one attempt for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Deps struct {
	Plans   usecase.PlanUseCase
	Quotas  usecase.QuotaUseCase
	Promos  usecase.PromoUseCase
	XP      usecase.XPUseCase
	Auth    *Authenticator
	Limiter Limiter // nil disables quote rate limiting
	Metrics http.Handler
	Logger  *zerolog.Logger
}

type Server struct {
	plans   usecase.PlanUseCase
	quotas  usecase.QuotaUseCase
	promos  usecase.PromoUseCase
	xp      usecase.XPUseCase
	auth    *Authenticator
	limiter Limiter
	metrics http.Handler
	log     *zerolog.Logger
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		plans:   d.Plans,
		quotas:  d.Quotas,
		promos:  d.Promos,
		xp:      d.XP,
		auth:    d.Auth,
		limiter: d.Limiter,
		metrics: d.Metrics,
		log:     logger,
	}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.listPlans)
		r.Get("/plans/{plan}", s.getPlan)
		r.Get("/plans/{plan}/quotas/{key}", s.evaluateQuota)
		r.Post("/quotas/consume", s.consumeQuota)

		r.Get("/promos", s.listPromos)
		r.Post("/promos/quote", s.quotePromo)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Post("/xp/vocab", s.awardVocabXP)
		})
		r.Post("/xp/writing/preview", s.previewWritingXP)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Post("/promos", s.createPromo)
			r.Patch("/promos/{code}", s.togglePromo)
		})
	})
	return r
}
