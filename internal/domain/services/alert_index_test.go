package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/mocks"
)

func TestAlertIndexer(t *testing.T) {
	emb := &mocks.Embedder{Vector: []float32{0.3, 0.4}}
	index := &mocks.AlertIndex{Matches: []entities.AlertMatch{
		{AlertID: "a1", Score: 0.9},
		{AlertID: "a2", Score: 0.8},
	}}
	x := NewAlertIndexer(emb, index)

	alert := testAlert(stockout("chicken_breast", 0.82, 2), entities.SeverityHigh, entities.HistoricalContext{})
	alert.Message = "High stockout risk for Chicken Breast in 2 day(s) (82% confidence)"
	require.NoError(t, x.Index(t.Context(), alert))
	assert.Equal(t, []string{"alert-1"}, index.SavedIDs())
	assert.Contains(t, emb.Texts()[0], "Chicken Breast")
	assert.Contains(t, emb.Texts()[0], entities.TrendNoData)

	matches, err := x.Similar(t.Context(), "chicken running low", 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a1", matches[0].AlertID)
	assert.Equal(t, "chicken running low", emb.Texts()[1])
}

func TestAlertIndexer_Errors(t *testing.T) {
	x := NewAlertIndexer(&mocks.Embedder{Err: errors.New("no key")}, &mocks.AlertIndex{})
	_, err := x.Similar(t.Context(), "salmon", 0, 0)
	assert.ErrorContains(t, err, "embedding query")

	x = NewAlertIndexer(&mocks.Embedder{Vector: []float32{1}}, &mocks.AlertIndex{SaveErr: errors.New("qdrant down")})
	err = x.Index(t.Context(), testAlert(stockout("salmon", 0.8, 1), entities.SeverityHigh, entities.HistoricalContext{}))
	assert.ErrorContains(t, err, "indexing alert")
}
