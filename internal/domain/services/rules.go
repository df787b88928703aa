package services

import "github.com/ersonp/spellstock-core/internal/domain/entities"

// Stockout bands by confidence.
const (
	StockoutCriticalConfidence = 0.85
	StockoutHighConfidence     = 0.70
	StockoutMediumConfidence   = 0.55
)

// Surplus bands by magnitude in units.
const (
	SurplusCriticalUnits = 5.0
	SurplusHighUnits     = 2.0
	SurplusMediumUnits   = 1.0
)

// NoDayLimit as RuleConfig.MaxDaysOut disables the horizon check.
const NoDayLimit = -1

// RuleConfig holds the thresholds and scope of the rule engine.
type RuleConfig struct {
	MinConfidence float64
	// MaxDaysOut drops events further away than this many days; zero keeps
	// only same-day events. NoDayLimit disables the check.
	MaxDaysOut         int
	IgnoredIngredients []string
	// RestaurantID limits classification to one restaurant. Zero allows any.
	RestaurantID int
}

// Classify assigns a severity band to an event. It has no side effects.
func Classify(e entities.RiskEvent, cfg RuleConfig) entities.Severity {
	if e.Confidence < cfg.MinConfidence {
		return entities.SeverityNone
	}
	if cfg.MaxDaysOut != NoDayLimit && e.DaysUntil > cfg.MaxDaysOut {
		return entities.SeverityNone
	}
	if cfg.RestaurantID != 0 && e.RestaurantID != cfg.RestaurantID {
		return entities.SeverityNone
	}
	for _, ing := range cfg.IgnoredIngredients {
		if ing == e.IngredientID || ing == e.ItemID {
			return entities.SeverityNone
		}
	}

	switch e.EventType {
	case entities.EventStockoutRisk:
		return band(e.Confidence, StockoutCriticalConfidence, StockoutHighConfidence, StockoutMediumConfidence)
	case entities.EventSurplusRisk:
		return band(e.Magnitude, SurplusCriticalUnits, SurplusHighUnits, SurplusMediumUnits)
	default:
		return entities.SeverityNone
	}
}

func band(v, critical, high, medium float64) entities.Severity {
	switch {
	case v >= critical:
		return entities.SeverityCritical
	case v >= high:
		return entities.SeverityHigh
	case v >= medium:
		return entities.SeverityMedium
	default:
		return entities.SeverityNone
	}
}
