package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/parsers"
)

// NormalizeScope holds the defaults and cutoff applied while normalizing.
type NormalizeScope struct {
	// RestaurantID applies to records that carry none.
	RestaurantID int
	// MinConfidence drops records whose dominant probability is below it,
	// compared before rounding.
	MinConfidence float64
	// ObservedAt applies to records without a timestamp.
	ObservedAt time.Time
}

// Normalize converts classifier records into risk events. Records that fail
// validation are skipped and reported as *entities.ValidationError values.
// Records under the confidence cutoff are dropped without error. The rest are
// returned in input order.
//
// The dominant probability picks the event type, with ties going to
// stockout. Confidence is rounded to two decimals after the cutoff.
func Normalize(preds []parsers.RawPrediction, scope NormalizeScope) ([]entities.RiskEvent, []error) {
	events := make([]entities.RiskEvent, 0, len(preds))
	var errs []error

	for i := range preds {
		p := &preds[i]
		line := p.LineNum
		if line == 0 {
			line = i + 1
		}

		ev, keep, err := normalizeOne(p, scope)
		if err != nil {
			var ve *entities.ValidationError
			if !errors.As(err, &ve) {
				ve = &entities.ValidationError{Field: "record", Message: err.Error()}
			}
			ve.Line = line
			errs = append(errs, ve)
			continue
		}
		if keep {
			events = append(events, ev)
		}
	}
	return events, errs
}

func normalizeOne(p *parsers.RawPrediction, scope NormalizeScope) (entities.RiskEvent, bool, error) {
	if p.Err != nil {
		return entities.RiskEvent{}, false, &entities.ValidationError{Field: "record", Message: p.Err.Error()}
	}

	itemID := strings.TrimSpace(p.ItemID)
	if itemID == "" {
		return entities.RiskEvent{}, false, &entities.ValidationError{Field: "item_id", Message: "is required"}
	}
	if p.StockoutProbability == nil && p.SurplusProbability == nil {
		return entities.RiskEvent{}, false, &entities.ValidationError{Field: "probability", Message: "stockout_probability or surplus_probability is required"}
	}

	stockout, err := probability("stockout_probability", p.StockoutProbability)
	if err != nil {
		return entities.RiskEvent{}, false, err
	}
	surplus, err := probability("surplus_probability", p.SurplusProbability)
	if err != nil {
		return entities.RiskEvent{}, false, err
	}

	days := 0
	if p.DaysUntilEvent != nil {
		days = *p.DaysUntilEvent
	}
	if days < 0 {
		return entities.RiskEvent{}, false, &entities.ValidationError{Field: "days_until_event", Value: fmt.Sprint(days), Message: "must not be negative"}
	}

	units := 0.0
	if p.ExpectedUnits != nil {
		units = *p.ExpectedUnits
	}
	if units < 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return entities.RiskEvent{}, false, &entities.ValidationError{Field: "expected_units", Value: fmt.Sprint(units), Message: "must be a non-negative number"}
	}

	rid := scope.RestaurantID
	if p.RestaurantID != nil {
		rid = *p.RestaurantID
	}
	if rid <= 0 {
		return entities.RiskEvent{}, false, &entities.ValidationError{Field: "restaurant_id", Value: fmt.Sprint(rid), Message: "must be positive"}
	}

	at := scope.ObservedAt
	if p.Timestamp != "" {
		at, err = time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return entities.RiskEvent{}, false, &entities.ValidationError{Field: "timestamp", Value: p.Timestamp, Message: "must be RFC 3339"}
		}
	}

	ingredient := strings.TrimSpace(p.IngredientID)
	if ingredient == "" {
		ingredient = itemID
	}

	eventType, confidence := entities.EventStockoutRisk, stockout
	if surplus > stockout {
		eventType, confidence = entities.EventSurplusRisk, surplus
	}
	if confidence < scope.MinConfidence {
		return entities.RiskEvent{}, false, nil
	}

	return entities.RiskEvent{
		ItemID:       itemID,
		EventType:    eventType,
		Confidence:   round2(confidence),
		Magnitude:    units,
		DaysUntil:    days,
		RestaurantID: rid,
		IngredientID: ingredient,
		ObservedAt:   at.UTC(),
	}, true, nil
}

func probability(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return 0, &entities.ValidationError{Field: field, Value: fmt.Sprint(*v), Message: "must be within [0,1]"}
	}
	return *v, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
