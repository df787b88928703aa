package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/mocks"
	"github.com/ersonp/spellstock-core/internal/infrastructure/parsers"
)

func newTestPipeline(f *fixture, indexer *AlertIndexer) *Pipeline {
	rules := RuleConfig{MinConfidence: 0.6, MaxDaysOut: 7}
	return NewPipeline(rules, f.gate, f.proposer, indexer, WithClock(f.clock.Now))
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := newFixture(t)
	p := newTestPipeline(f, nil)

	summary, err := p.RunEvents(t.Context(), []entities.RiskEvent{stockout("chicken_breast", 0.82, 2)})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Classified)
	assert.Equal(t, 1, summary.Admitted)
	require.Len(t, summary.Alerts, 1)
	assert.Equal(t, entities.SeverityHigh, summary.Alerts[0].Severity)

	actions, err := f.store.ListActions(t.Context())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, entities.RiskHigh, actions[0].RiskLevel)
	assert.Equal(t, entities.StatusProposed, actions[0].Status)
	assert.Equal(t, summary.Alerts[0].ID, actions[0].AlertID)
}

func TestPipeline_Run(t *testing.T) {
	f := newFixture(t)
	emb := &mocks.Embedder{Vector: []float32{0.1, 0.2}}
	index := &mocks.AlertIndex{}
	p := newTestPipeline(f, NewAlertIndexer(emb, index))

	preds := []parsers.RawPrediction{
		{ItemID: "chicken_breast", StockoutProbability: ptr(0.80), DaysUntilEvent: ptr(2), LineNum: 1},
		{ItemID: "chicken_breast", StockoutProbability: ptr(0.82), DaysUntilEvent: ptr(2), LineNum: 2},
		{ItemID: "basil", StockoutProbability: ptr(0.40), LineNum: 3},
		{ItemID: "salmon", StockoutProbability: ptr(1.4), LineNum: 4},
	}

	summary, err := p.Run(t.Context(), preds)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Loaded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.BelowConfidence)
	assert.Equal(t, 2, summary.Events)
	assert.Equal(t, 2, summary.Classified)
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, 1, summary.Suppressed)
	assert.Equal(t, 1, summary.ActionsProposed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "line 4")
	assert.Equal(t, []string{summary.Alerts[0].ID}, index.SavedIDs())
}

func TestPipeline_ConfidenceCutoffUsesRawProbability(t *testing.T) {
	f := newFixture(t)
	p := newTestPipeline(f, nil)

	preds := []parsers.RawPrediction{
		{ItemID: "chicken_breast", StockoutProbability: ptr(0.595), DaysUntilEvent: ptr(2), LineNum: 1},
		{ItemID: "salmon", StockoutProbability: ptr(0.549), DaysUntilEvent: ptr(2), LineNum: 2},
	}

	summary, err := p.Run(t.Context(), preds)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.BelowConfidence)
	assert.Zero(t, summary.Classified)
	assert.Zero(t, summary.Admitted)
	assert.Zero(t, summary.ActionsProposed)

	actions, err := f.store.ListActions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestPipeline_EscalationAcrossRuns(t *testing.T) {
	f := newFixture(t)
	p := newTestPipeline(f, nil)

	first, err := p.RunEvents(t.Context(), []entities.RiskEvent{stockout("salmon", 0.80, 2)})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	second, err := p.RunEvents(t.Context(), []entities.RiskEvent{stockout("salmon", 0.90, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Escalated)
	assert.Equal(t, 3, second.ActionsProposed)

	prior, err := f.store.FindAlert(t.Context(), first.Alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, second.Alerts[0].ID, prior.SupersededBy)
}

func TestPipeline_IndexFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	p := newTestPipeline(f, NewAlertIndexer(&mocks.Embedder{Err: errors.New("rate limited")}, &mocks.AlertIndex{}))

	summary, err := p.RunEvents(t.Context(), []entities.RiskEvent{stockout("salmon", 0.80, 2)})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Admitted)
}
