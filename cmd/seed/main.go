package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"gramorx-entitlements/internal/config"
	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
	"gramorx-entitlements/internal/infra/api"
	pg "gramorx-entitlements/internal/infra/db/postgres"
	"gramorx-entitlements/internal/infra/logging"
	"gramorx-entitlements/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	promoRepo := pg.NewPromoRepo(pool)
	promoUC := usecase.NewPromoUseCase(promoRepo, pg.NewTxManager(pool), model.DefaultCatalog(), logger, nil)

	// Stored codes the static table does not carry.
	seed := []model.PromoRule{
		{Code: "STUDENT15", Label: "Student discount", Type: model.DiscountPercent, Value: 15, IsActive: true,
			AppliesTo: model.PromoAppliesTo{Plans: []model.PlanID{model.PlanStarter, model.PlanBooster}}},
		{Code: "LOCAL300", Label: "Local wallets", Type: model.DiscountFlat, Value: 300, IsActive: true,
			AppliesTo: model.PromoAppliesTo{Methods: []model.PaymentMethod{model.MethodEasypaisa, model.MethodJazzCash}}},
		{Code: "OWLYEAR", Label: "Owl annual", Type: model.DiscountPercent, Value: 25, IsActive: true,
			AppliesTo: model.PromoAppliesTo{Plans: []model.PlanID{model.PlanMaster}, Cycles: []model.Cycle{model.CycleAnnual}}},
	}
	for i := range seed {
		rule, err := promoUC.Create(ctx, &seed[i])
		if errors.Is(err, domain.ErrAlreadyExists) {
			fmt.Printf("exists: %s\n", seed[i].Code)
			continue
		}
		if err != nil {
			log.Fatalf("create promo %q: %v", seed[i].Code, err)
		}
		fmt.Printf("seeded: %s (%s)\n", rule.Code, promoUC.Explain(rule))
	}

	profiles := pg.NewProfileRepo(pool)
	for user, plan := range map[string]model.PlanID{
		"demo-free":    model.PlanFree,
		"demo-starter": model.PlanStarter,
		"demo-booster": model.PlanBooster,
		"demo-master":  model.PlanMaster,
	} {
		if err := profiles.SetPlan(ctx, repository.NoTX, user, plan); err != nil {
			log.Fatalf("profile %s: %v", user, err)
		}
	}

	n, err := promoRepo.CountActive(ctx)
	if err != nil {
		log.Fatalf("count promos: %v", err)
	}
	fmt.Printf("Seeding complete. %d stored promo codes active.\n", n)

	// Bearer tokens for trying the API against the seeded profiles.
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	for _, who := range []struct{ sub, role string }{
		{"demo-free", api.RoleUser},
		{"demo-starter", api.RoleUser},
		{"demo-booster", api.RoleUser},
		{"demo-master", api.RoleUser},
		{"demo-admin", api.RoleAdmin},
	} {
		tok, err := auth.Mint(who.sub, who.role)
		if err != nil {
			log.Fatalf("mint token for %s: %v", who.sub, err)
		}
		fmt.Printf("token %s (%s): %s\n", who.sub, who.role, tok)
	}
}
