package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

func TestEligibilityGate_SuppressesWithinWindow(t *testing.T) {
	f := newFixture(t)

	first, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdmitted, first.Outcome)
	require.NotNil(t, first.Alert)
	assert.Equal(t, entities.TrendStable, first.Alert.HistoricalContext.Trend)

	f.clock.Advance(time.Hour)
	second, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.82, 2), entities.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, second.Outcome)
	assert.False(t, second.Admitted())
	assert.Equal(t, first.Alert.ID, second.Prior.ID)

	active, err := f.store.ListActiveAlerts(t.Context(), f.clock.Now().Add(-DefaultDedupWindow))
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEligibilityGate_Escalates(t *testing.T) {
	f := newFixture(t)

	first, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.90, 1), entities.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, second.Outcome)
	assert.True(t, second.Admitted())

	prior, err := f.store.FindAlert(t.Context(), first.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Alert.ID, prior.SupersededBy)
	assert.False(t, prior.IsActive())
}

func TestEligibilityGate_AdmitsAfterWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)
	require.NoError(t, err)

	f.clock.Advance(DefaultDedupWindow)
	again, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdmitted, again.Outcome)
}

func TestEligibilityGate_KeysAreIndependent(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)
	require.NoError(t, err)

	other := surplus("salmon", 0.8, 3)
	adm, err := f.gate.Evaluate(t.Context(), other, entities.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdmitted, adm.Outcome)
}

func TestEligibilityGate_HistoryFailure(t *testing.T) {
	f := newFixture(t)
	f.history.Err = errors.New("history service down")

	adm, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)

	require.NoError(t, err)
	assert.Equal(t, entities.TrendNoData, adm.Alert.HistoricalContext.Trend)
}

func TestEligibilityGate_RejectsNone(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.3, 2), entities.SeverityNone)

	assert.True(t, entities.IsValidation(err))
}

func TestEligibilityGate_Concurrent(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adm, err := f.gate.Evaluate(t.Context(), stockout("salmon", 0.80, 2), entities.SeverityHigh)
			if assert.NoError(t, err) {
				outcomes[i] = adm.Outcome
			}
		}()
	}
	wg.Wait()

	admitted := 0
	for _, o := range outcomes {
		if o == OutcomeAdmitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}
