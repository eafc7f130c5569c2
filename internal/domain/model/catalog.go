package model

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"gramorx-entitlements/internal/domain"
)

// Catalog is the read-only plan table. Build it once at start-up and
// pass it to whatever needs plan data; there is no mutation API.
type Catalog struct {
	plans map[PlanID]Plan
	order []PlanID
}

// NewCatalog validates plans and freezes them in rank order.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("catalog: no plans: %w", domain.ErrInvalidArgument)
	}
	c := &Catalog{plans: make(map[PlanID]Plan, len(plans))}
	for _, p := range plans {
		if !p.ID.Valid() {
			return nil, fmt.Errorf("catalog: unknown plan %q: %w", p.ID, domain.ErrInvalidArgument)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate plan %q: %w", p.ID, domain.ErrInvalidArgument)
		}
		if p.PriceMonthlyCents < 0 || p.PriceAnnualCents < 0 {
			return nil, fmt.Errorf("catalog: negative price for %q: %w", p.ID, domain.ErrInvalidArgument)
		}
		quotas := make(map[QuotaKey]Limit, len(p.Quotas))
		for k, v := range p.Quotas {
			if _, ok := quotaLabels[k]; !ok {
				return nil, fmt.Errorf("catalog: plan %q has unknown quota %q: %w", p.ID, k, domain.ErrInvalidArgument)
			}
			quotas[k] = v
		}
		p.Quotas = quotas
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	for _, id := range []PlanID{PlanFree, PlanStarter, PlanBooster, PlanMaster} {
		if _, ok := c.plans[id]; !ok {
			return nil, fmt.Errorf("catalog: missing plan %q: %w", id, domain.ErrInvalidArgument)
		}
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i].Rank() < c.order[j].Rank() })
	return c, nil
}

// DefaultCatalog returns the shipped plan table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPlans())
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalog reads a YAML plan table; an empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Plans)
}

// Plan returns a copy of the entry for id.
func (c *Catalog) Plan(id PlanID) (*Plan, bool) {
	p, ok := c.plans[id]
	if !ok {
		return nil, false
	}
	cp := p
	cp.Quotas = make(map[QuotaKey]Limit, len(p.Quotas))
	for k, v := range p.Quotas {
		cp.Quotas[k] = v
	}
	return &cp, true
}

// Plans returns copies of all entries in rank order.
func (c *Catalog) Plans() []*Plan {
	out := make([]*Plan, 0, len(c.order))
	for _, id := range c.order {
		p, _ := c.Plan(id)
		out = append(out, p)
	}
	return out
}

func (c *Catalog) Order() []PlanID {
	out := make([]PlanID, len(c.order))
	copy(out, c.order)
	return out
}

// Limit degrades to Finite(0) for unknown plans or keys.
func (c *Catalog) Limit(id PlanID, key QuotaKey) Limit {
	p, ok := c.plans[id]
	if !ok {
		return Finite(0)
	}
	return p.Limit(key)
}

// BillingAmountCents is what a checkout charges for one billing period.
func (c *Catalog) BillingAmountCents(id PlanID, cycle Cycle) (int64, error) {
	p, ok := c.plans[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	switch cycle {
	case CycleMonthly:
		return p.PriceMonthlyCents, nil
	case CycleAnnual:
		return p.PriceAnnualCents * 12, nil
	}
	return 0, domain.ErrInvalidArgument
}
