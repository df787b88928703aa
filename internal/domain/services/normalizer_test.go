package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/parsers"
)

func TestNormalize(t *testing.T) {
	observed := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	preds := []parsers.RawPrediction{
		{ItemID: "chicken_breast", StockoutProbability: ptr(0.823), SurplusProbability: ptr(0.1), DaysUntilEvent: ptr(2), LineNum: 1},
		{ItemID: "item-7", IngredientID: "basil", SurplusProbability: ptr(0.75), ExpectedUnits: ptr(3.0), RestaurantID: ptr(4), LineNum: 2},
		{ItemID: "tie", StockoutProbability: ptr(0.5), SurplusProbability: ptr(0.5), Timestamp: "2026-03-01T12:00:00Z", LineNum: 3},
	}

	events, errs := Normalize(preds, NormalizeScope{RestaurantID: 1, ObservedAt: observed})

	require.Empty(t, errs)
	require.Len(t, events, 3)

	assert.Equal(t, entities.EventStockoutRisk, events[0].EventType)
	assert.Equal(t, 0.82, events[0].Confidence)
	assert.Equal(t, "chicken_breast", events[0].IngredientID)
	assert.Equal(t, 1, events[0].RestaurantID)
	assert.Equal(t, observed, events[0].ObservedAt)

	assert.Equal(t, entities.EventSurplusRisk, events[1].EventType)
	assert.Equal(t, "basil", events[1].IngredientID)
	assert.Equal(t, 4, events[1].RestaurantID)
	assert.Equal(t, 3.0, events[1].Magnitude)

	assert.Equal(t, entities.EventStockoutRisk, events[2].EventType, "ties go to stockout")
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), events[2].ObservedAt)
}

func TestNormalize_InvalidRecords(t *testing.T) {
	preds := []parsers.RawPrediction{
		{ItemID: "", StockoutProbability: ptr(0.9), LineNum: 1},
		{ItemID: "a", LineNum: 2},
		{ItemID: "b", StockoutProbability: ptr(1.2), LineNum: 3},
		{ItemID: "c", StockoutProbability: ptr(0.9), DaysUntilEvent: ptr(-1), LineNum: 4},
		{ItemID: "d", SurplusProbability: ptr(0.9), ExpectedUnits: ptr(-2.0), LineNum: 5},
		{ItemID: "e", StockoutProbability: ptr(0.9), Timestamp: "yesterday", LineNum: 6},
		{LineNum: 7, Err: errors.New("unexpected end of JSON input")},
		{ItemID: "ok", StockoutProbability: ptr(0.9), LineNum: 8},
	}

	events, errs := Normalize(preds, NormalizeScope{RestaurantID: 1, ObservedAt: time.Now()})

	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ItemID)
	require.Len(t, errs, 7)
	for i, err := range errs {
		var ve *entities.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, i+1, ve.Line)
	}
	assert.Contains(t, errs[2].Error(), "stockout_probability")
}

func TestNormalize_RequiresRestaurant(t *testing.T) {
	_, errs := Normalize([]parsers.RawPrediction{{ItemID: "a", StockoutProbability: ptr(0.9)}}, NormalizeScope{ObservedAt: time.Now()})

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "restaurant_id")
	assert.Contains(t, errs[0].Error(), "line 1")
}

func TestNormalize_ConfidenceCutoffBeforeRounding(t *testing.T) {
	preds := []parsers.RawPrediction{
		{ItemID: "just-under", StockoutProbability: ptr(0.595), LineNum: 1},
		{ItemID: "well-under", StockoutProbability: ptr(0.549), LineNum: 2},
		{ItemID: "at-cutoff", StockoutProbability: ptr(0.6), LineNum: 3},
		{ItemID: "surplus", StockoutProbability: ptr(0.1), SurplusProbability: ptr(0.6049), ExpectedUnits: ptr(2.0), LineNum: 4},
	}

	events, errs := Normalize(preds, NormalizeScope{RestaurantID: 1, MinConfidence: 0.6, ObservedAt: time.Now()})

	require.Empty(t, errs)
	require.Len(t, events, 2)
	assert.Equal(t, "at-cutoff", events[0].ItemID)
	assert.Equal(t, "surplus", events[1].ItemID)
	assert.Equal(t, 0.6, events[1].Confidence)
}
