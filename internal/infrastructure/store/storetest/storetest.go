// Package storetest holds behaviour tests shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// Run exercises a fresh store from newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("insert and find action", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := newAction("a1", base)
		require.NoError(t, s.InsertAction(ctx, a, entry(t, a, entities.EventCreated, "")))

		found, err := s.FindAction(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, a.Payload, found.Payload)
		assert.Equal(t, entities.StatusProposed, found.Status)
		assert.True(t, found.CreatedAt.Equal(base))
		assert.Nil(t, found.ExecutionResult)

		_, err = s.FindAction(ctx, "missing")
		assert.True(t, entities.IsNotFound(err))
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			a := newAction(id, base)
			require.NoError(t, s.InsertAction(ctx, a, entry(t, a, entities.EventCreated, "")))
		}

		list, err := s.ListActions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"c", "a", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAction("a1", base)
		require.NoError(t, s.InsertAction(ctx, a, entry(t, a, entities.EventCreated, "")))

		next := a.Clone()
		next.Status = entities.StatusApproved
		next.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, s.CompareAndSwap(ctx, entities.StatusProposed, next, entry(t, next, entities.EventApproved, entities.StatusProposed)))

		stale := a.Clone()
		stale.Status = entities.StatusRejected
		err := s.CompareAndSwap(ctx, entities.StatusProposed, stale, entry(t, stale, entities.EventRejected, entities.StatusProposed))
		require.ErrorIs(t, err, entities.ErrStatusMismatch)

		found, err := s.FindAction(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, entities.StatusApproved, found.Status)
		assert.True(t, found.UpdatedAt.Equal(base.Add(time.Minute)))

		entries, err := s.ListAudit(ctx, entities.AuditQuery{ActionID: "a1", Ascending: true})
		require.NoError(t, err)
		require.Len(t, entries, 2, "failed swap must not append")
		assert.Equal(t, entities.StatusApproved, entries[1].NewStatus)
		assert.Equal(t, -1, entities.VerifyAuditChain(entries))

		missing := newAction("nope", base)
		err = s.CompareAndSwap(ctx, entities.StatusProposed, missing, nil)
		assert.True(t, entities.IsNotFound(err))
	})

	t.Run("swap without audit entry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAction("a1", base)
		a.Status = entities.StatusApproved
		require.NoError(t, s.InsertAction(ctx, a, entry(t, a, entities.EventCreated, "")))

		marker := a.Clone()
		marker.Status = entities.StatusExecuting
		require.NoError(t, s.CompareAndSwap(ctx, entities.StatusApproved, marker, nil))

		done := a.Clone()
		done.Status = entities.StatusExecuted
		done.UpdatedAt = base.Add(time.Hour)
		done.ExecutionResult = &entities.ExecutionResult{Reference: "PO-7", Details: map[string]any{"lines": float64(1)}}
		require.NoError(t, s.CompareAndSwap(ctx, entities.StatusExecuting, done, entry(t, done, entities.EventExecuted, entities.StatusApproved)))

		found, err := s.FindAction(ctx, "a1")
		require.NoError(t, err)
		require.NotNil(t, found.ExecutionResult)
		assert.Equal(t, "PO-7", found.ExecutionResult.Reference)

		entries, err := s.ListAudit(ctx, entities.AuditQuery{ActionID: "a1"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("concurrent swaps admit one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := newAction("a1", base)
		a.Status = entities.StatusApproved
		require.NoError(t, s.InsertAction(ctx, a, nil))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next := a.Clone()
				next.Status = entities.StatusExecuting
				if s.CompareAndSwap(ctx, entities.StatusApproved, next, nil) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("audit queries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i, id := range []string{"a1", "a2"} {
			a := newAction(id, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, s.InsertAction(ctx, a, entry(t, a, entities.EventCreated, "")))
		}
		a, err := s.FindAction(ctx, "a2")
		require.NoError(t, err)
		next := a.Clone()
		next.Status = entities.StatusRejected
		next.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, s.CompareAndSwap(ctx, entities.StatusProposed, next, entry(t, next, entities.EventRejected, entities.StatusProposed)))

		all, err := s.ListAudit(ctx, entities.AuditQuery{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, entities.StatusRejected, all[0].NewStatus, "newest first")

		rejected, err := s.ListAudit(ctx, entities.AuditQuery{NewStatus: entities.StatusRejected})
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, "a2", rejected[0].ActionID)

		limited, err := s.ListAudit(ctx, entities.AuditQuery{Limit: 2, Ascending: true})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "a1", limited[0].ActionID)

		chain, err := s.ListAudit(ctx, entities.AuditQuery{Ascending: true})
		require.NoError(t, err)
		assert.Equal(t, -1, entities.VerifyAuditChain(chain))

		snap, err := chain[2].Action()
		require.NoError(t, err)
		assert.Equal(t, entities.StatusRejected, snap.Status)
	})

	t.Run("alerts window and supersession", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		key := entities.DedupKey{RestaurantID: 1, IngredientID: "chicken_breast", EventType: entities.EventStockoutRisk}

		old := newAlert("old", key, entities.SeverityHigh, base.Add(-30*time.Hour))
		first := newAlert("first", key, entities.SeverityHigh, base.Add(-2*time.Hour))
		other := newAlert("other", entities.DedupKey{RestaurantID: 2, IngredientID: "chicken_breast", EventType: entities.EventStockoutRisk}, entities.SeverityHigh, base)
		for _, a := range []*entities.Alert{old, first, other} {
			require.NoError(t, s.SaveAlert(ctx, a))
		}

		since := base.Add(-24 * time.Hour)
		found, err := s.FindLatestActiveAlert(ctx, key, since)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "first", found.ID)
		assert.Equal(t, "chicken_breast", found.Event.IngredientID)

		same := newAlert("same", key, entities.SeverityHigh, base)
		prior, admitted, err := s.AdmitAlert(ctx, same, since)
		require.NoError(t, err)
		assert.False(t, admitted, "equal severity is suppressed")
		require.NotNil(t, prior)
		assert.Equal(t, "first", prior.ID)
		_, err = s.FindAlert(ctx, "same")
		assert.True(t, entities.IsNotFound(err))

		second := newAlert("second", key, entities.SeverityCritical, base)
		prior, admitted, err = s.AdmitAlert(ctx, second, since)
		require.NoError(t, err)
		assert.True(t, admitted)
		require.NotNil(t, prior)
		assert.Equal(t, "second", prior.SupersededBy)

		found, err = s.FindLatestActiveAlert(ctx, key, since)
		require.NoError(t, err)
		assert.Equal(t, "second", found.ID)

		stored, err := s.FindAlert(ctx, "first")
		require.NoError(t, err)
		assert.Equal(t, "second", stored.SupersededBy)

		active, err := s.ListActiveAlerts(ctx, since)
		require.NoError(t, err)
		ids := make([]string, 0, len(active))
		for _, a := range active {
			ids = append(ids, a.ID)
		}
		assert.ElementsMatch(t, []string{"second", "other"}, ids)

		none, err := s.FindLatestActiveAlert(ctx, key, base)
		require.NoError(t, err)
		assert.Nil(t, none, "window start is exclusive")

		fresh := newAlert("fresh", key, entities.SeverityMedium, base.Add(time.Hour))
		prior, admitted, err = s.AdmitAlert(ctx, fresh, base)
		require.NoError(t, err)
		assert.True(t, admitted, "alerts outside the window do not suppress")
		assert.Nil(t, prior)

		_, err = s.FindAlert(ctx, "missing")
		assert.True(t, entities.IsNotFound(err))
	})
}

// RunShared exercises two handles on the same backing data, as separate
// processes sharing one database file would see it. open must return a new
// pair on each call.
func RunShared(t *testing.T, open func(t *testing.T) (ports.Store, ports.Store)) {
	t.Run("admission is atomic per key across handles", func(t *testing.T) {
		a, b := open(t)
		ctx := context.Background()
		since := base.Add(-24 * time.Hour)

		const keys = 20
		var admitted atomic.Int64
		var wg sync.WaitGroup
		for i := range keys {
			key := entities.DedupKey{RestaurantID: 1, IngredientID: fmt.Sprintf("ingredient-%d", i), EventType: entities.EventStockoutRisk}
			for j, s := range []ports.Store{a, b} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					alert := newAlert(fmt.Sprintf("alert-%d-%d", i, j), key, entities.SeverityHigh, base)
					_, ok, err := s.AdmitAlert(ctx, alert, since)
					assert.NoError(t, err)
					if ok {
						admitted.Add(1)
					}
				}()
			}
		}
		wg.Wait()

		assert.Equal(t, int64(keys), admitted.Load())
		active, err := b.ListActiveAlerts(ctx, since)
		require.NoError(t, err)
		assert.Len(t, active, keys)
	})

	t.Run("compare and swap is exclusive across handles", func(t *testing.T) {
		a, b := open(t)
		ctx := context.Background()

		act := newAction("shared", base)
		require.NoError(t, a.InsertAction(ctx, act, entry(t, act, entities.EventCreated, "")))

		var wins atomic.Int64
		var wg sync.WaitGroup
		for _, s := range []ports.Store{a, b, a, b} {
			next := act.Clone()
			next.Status = entities.StatusApproved
			e := entry(t, next, entities.EventApproved, entities.StatusProposed)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.CompareAndSwap(ctx, entities.StatusProposed, next, e); err == nil {
					wins.Add(1)
				} else {
					assert.ErrorIs(t, err, entities.ErrStatusMismatch)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), wins.Load())
		chain, err := b.ListAudit(ctx, entities.AuditQuery{Ascending: true})
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, -1, entities.VerifyAuditChain(chain))
	})
}

func newAction(id string, at time.Time) *entities.Action {
	return &entities.Action{
		ID:               id,
		Type:             entities.ActionDraftPO,
		Payload:          entities.Payload{Ingredient: "chicken_breast", Quantity: 40, Unit: "lb", Vendor: "Sysco"},
		Status:           entities.StatusProposed,
		RiskLevel:        entities.RiskHigh,
		OwnerRole:        entities.RolePurchasing,
		Reason:           "Alert x: stockout risk",
		ExpectedImpact:   "Avoid stockout",
		RequiresApproval: false,
		AlertID:          "x",
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func entry(t *testing.T, a *entities.Action, event string, prior entities.ActionStatus) *entities.AuditEntry {
	t.Helper()
	e, err := entities.NewAuditEntry(a, event, prior, entities.ActorHuman, "")
	require.NoError(t, err)
	return e
}

func newAlert(id string, key entities.DedupKey, sev entities.Severity, at time.Time) *entities.Alert {
	return &entities.Alert{
		ID:       id,
		Key:      key,
		Severity: sev,
		Message:  "stockout risk",
		Event: entities.RiskEvent{
			ItemID:       key.IngredientID,
			EventType:    key.EventType,
			Confidence:   0.8,
			DaysUntil:    2,
			RestaurantID: key.RestaurantID,
			IngredientID: key.IngredientID,
			ObservedAt:   at,
		},
		HistoricalContext: entities.HistoricalContext{AvgDailyUse: 12, Trend: entities.TrendStable},
		CreatedAt:         at,
	}
}
