package handlers

import (
	"testing"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/mocks"
	"github.com/ersonp/spellstock-core/internal/domain/services"
	"github.com/ersonp/spellstock-core/internal/infrastructure/store/memory"
)

type testApp struct {
	store     *memory.Store
	executor  *mocks.Executor
	lifecycle *services.LifecycleManager
	query     *services.QueryService
	gate      *services.EligibilityGate
	proposer  *services.ProposalGenerator
	pipeline  *services.Pipeline
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memory.New()
	exec := &mocks.Executor{}
	history := &mocks.History{Default: entities.HistoricalContext{AvgDailyUse: 4, Trend: entities.TrendStable}}

	lifecycle := services.NewLifecycleManager(store, store, exec)
	gate := services.NewEligibilityGate(store, history, services.DefaultDedupWindow)
	proposer := services.NewProposalGenerator(lifecycle)
	rules := services.RuleConfig{MinConfidence: 0.6, MaxDaysOut: 7}

	return &testApp{
		store:     store,
		executor:  exec,
		lifecycle: lifecycle,
		query:     services.NewQueryService(store),
		gate:      gate,
		proposer:  proposer,
		pipeline:  services.NewPipeline(rules, gate, proposer, nil),
	}
}

func (a *testApp) propose(t *testing.T, d entities.ActionDraft) *entities.Action {
	t.Helper()
	if d.Type == "" {
		d.Type = entities.ActionDraftPO
	}
	if d.Payload.Ingredient == "" {
		d.Payload.Ingredient = "chicken_breast"
	}
	action, err := a.lifecycle.Create(t.Context(), d, entities.ActorHuman)
	if err != nil {
		t.Fatalf("creating action: %v", err)
	}
	return action
}
