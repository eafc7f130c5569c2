//go:build !integration

package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"gramorx-entitlements/internal/domain"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// =============================
// Repositories
// =============================

// ---- In-memory PromoRepository ----

type MockPromoRepo struct {
	mu    sync.Mutex
	rules map[string]*model.PromoRule

	FindByCodeFunc func(ctx context.Context, tx repository.Tx, code string) (*model.PromoRule, error)
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.PromoRule, error)
	SaveFunc       func(ctx context.Context, tx repository.Tx, rule *model.PromoRule) error
}

var _ repository.PromoRepository = (*MockPromoRepo)(nil)

func NewMockPromoRepo(seed ...*model.PromoRule) *MockPromoRepo {
	m := &MockPromoRepo{rules: make(map[string]*model.PromoRule)}
	for _, r := range seed {
		cp := *r
		m.rules[r.Code] = &cp
	}
	return m
}

func (m *MockPromoRepo) Save(ctx context.Context, tx repository.Tx, rule *model.PromoRule) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, rule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.Code]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *rule
	m.rules[rule.Code] = &cp
	return nil
}

func (m *MockPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoRule, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockPromoRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PromoRule, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromoRule
	for _, r := range m.rules {
		if r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MockPromoRepo) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[code]
	if !ok {
		return domain.ErrNotFound
	}
	r.IsActive = active
	return nil
}

// ---- In-memory XPLedgerRepository ----

type MockXPLedger struct {
	mu     sync.Mutex
	Events []*model.XPEvent
	Locks  []string

	SumBetweenFunc func(ctx context.Context, tx repository.Tx, userID string, start, end time.Time) (int64, error)
	InsertFunc     func(ctx context.Context, tx repository.Tx, ev *model.XPEvent) error
}

var _ repository.XPLedgerRepository = (*MockXPLedger)(nil)

func NewMockXPLedger() *MockXPLedger { return &MockXPLedger{} }

// Seed appends a pre-existing event without going through the use case.
func (m *MockXPLedger) Seed(userID string, amount int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, &model.XPEvent{UserID: userID, Amount: amount, CreatedAt: at})
}

func (m *MockXPLedger) LockDay(_ context.Context, _ repository.Tx, userID string, dayISO string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locks = append(m.Locks, userID+"|"+dayISO)
	return nil
}

func (m *MockXPLedger) SumBetween(ctx context.Context, tx repository.Tx, userID string, start, end time.Time) (int64, error) {
	if m.SumBetweenFunc != nil {
		return m.SumBetweenFunc(ctx, tx, userID, start, end)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, ev := range m.Events {
		if ev.UserID == userID && !ev.CreatedAt.Before(start) && ev.CreatedAt.Before(end) {
			total += ev.Amount
		}
	}
	return total, nil
}

func (m *MockXPLedger) Insert(ctx context.Context, tx repository.Tx, ev *model.XPEvent) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MockXPLedger) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// ---- ProfileRepository ----

type MockProfileRepo struct {
	Plans map[string]model.PlanID
	Err   error
}

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func (m *MockProfileRepo) PlanForUser(_ context.Context, _ repository.Tx, userID string) (model.PlanID, error) {
	if m.Err != nil {
		return "", m.Err
	}
	p, ok := m.Plans[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	mu    sync.Mutex
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
// Calls are serialized so tests can rely on the same exclusion the
// advisory lock gives in Postgres.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}
