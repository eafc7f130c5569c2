package usecase

import (
	"context"
	"fmt"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
)

// PlanUseCase exposes the read-only plan catalog.
type PlanUseCase interface {
	List(ctx context.Context) ([]*model.Plan, error)
	Get(ctx context.Context, id string) (*model.Plan, error)
	// BillingAmount is the checkout subtotal for one billing period.
	BillingAmount(ctx context.Context, id string, cycle string) (int64, error)
}

var _ PlanUseCase = (*planUC)(nil)

type planUC struct {
	catalog *model.Catalog
}

func NewPlanUseCase(catalog *model.Catalog) PlanUseCase {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	return &planUC{catalog: catalog}
}

func (p *planUC) List(_ context.Context) ([]*model.Plan, error) {
	return p.catalog.Plans(), nil
}

func (p *planUC) Get(_ context.Context, id string) (*model.Plan, error) {
	pid, ok := model.ParsePlanID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	plan, ok := p.catalog.Plan(pid)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (p *planUC) BillingAmount(_ context.Context, id string, cycle string) (int64, error) {
	pid, ok := model.ParsePlanID(id)
	if !ok {
		return 0, fmt.Errorf("plan %q: %w", id, domain.ErrInvalidArgument)
	}
	c, ok := model.ParseCycle(cycle)
	if !ok {
		return 0, fmt.Errorf("cycle %q: %w", cycle, domain.ErrInvalidArgument)
	}
	return p.catalog.BillingAmountCents(pid, c)
}
