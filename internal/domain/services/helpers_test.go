package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/mocks"
	"github.com/ersonp/spellstock-core/internal/infrastructure/store/memory"
)

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store     *memory.Store
	executor  *mocks.Executor
	history   *mocks.History
	clock     *fakeClock
	lifecycle *LifecycleManager
	gate      *EligibilityGate
	proposer  *ProposalGenerator
	query     *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		executor: &mocks.Executor{},
		history: &mocks.History{Default: entities.HistoricalContext{
			AvgDailyUse: 4, Trend: entities.TrendStable, LatestDaysOfSupply: 1.5, MaxSafeOrderQty: 50,
		}},
		clock: newFakeClock(),
	}
	clock := WithClock(f.clock.Now)
	f.lifecycle = NewLifecycleManager(f.store, f.store, f.executor, clock)
	f.gate = NewEligibilityGate(f.store, f.history, DefaultDedupWindow, clock)
	f.proposer = NewProposalGenerator(f.lifecycle)
	f.query = NewQueryService(f.store)
	return f
}

// create stores a proposed action, advancing the clock so creation order is
// visible in timestamps.
func (f *fixture) create(t *testing.T, d entities.ActionDraft) *entities.Action {
	t.Helper()
	if d.Type == "" {
		d.Type = entities.ActionDraftPO
	}
	if d.Payload.Ingredient == "" {
		d.Payload.Ingredient = "chicken_breast"
	}
	a, err := f.lifecycle.Create(t.Context(), d, entities.ActorHuman)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return a
}

func (f *fixture) approved(t *testing.T, d entities.ActionDraft) *entities.Action {
	t.Helper()
	a := f.create(t, d)
	a, err := f.lifecycle.Approve(t.Context(), a.ID, entities.ActorHuman)
	require.NoError(t, err)
	return a
}

func (f *fixture) auditOf(t *testing.T, id string) []entities.AuditEntry {
	t.Helper()
	entries, err := f.lifecycle.History(t.Context(), id)
	require.NoError(t, err)
	return entries
}

func events(entries []entities.AuditEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out
}

func stockout(ingredient string, confidence float64, days int) entities.RiskEvent {
	return entities.RiskEvent{
		ItemID:       ingredient,
		EventType:    entities.EventStockoutRisk,
		Confidence:   confidence,
		DaysUntil:    days,
		RestaurantID: 1,
		IngredientID: ingredient,
		ObservedAt:   time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
	}
}

func surplus(ingredient string, confidence, units float64) entities.RiskEvent {
	ev := stockout(ingredient, confidence, 1)
	ev.EventType = entities.EventSurplusRisk
	ev.Magnitude = units
	return ev
}

func ptr[T any](v T) *T { return &v }
