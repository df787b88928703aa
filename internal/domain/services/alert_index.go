package services

import (
	"context"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
)

// AlertIndexer keeps admitted alerts searchable by meaning.
type AlertIndexer struct {
	embedder ports.Embedder
	index    ports.AlertIndex
}

// NewAlertIndexer creates a new AlertIndexer.
func NewAlertIndexer(embedder ports.Embedder, index ports.AlertIndex) *AlertIndexer {
	return &AlertIndexer{embedder: embedder, index: index}
}

// Index embeds and stores one alert.
func (x *AlertIndexer) Index(ctx context.Context, alert *entities.Alert) error {
	vec, err := x.embedder.Embed(ctx, AlertText(alert))
	if err != nil {
		return fmt.Errorf("embedding alert: %w", err)
	}
	if err := x.index.SaveAlert(ctx, alert, vec); err != nil {
		return fmt.Errorf("indexing alert: %w", err)
	}
	return nil
}

// Similar returns alerts whose text is closest to query. A zero
// restaurantID searches every restaurant.
func (x *AlertIndexer) Similar(ctx context.Context, query string, restaurantID, limit int) ([]entities.AlertMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := x.index.SearchAlerts(ctx, vec, restaurantID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching alerts: %w", err)
	}
	return matches, nil
}

// AlertText is the text embedded for an alert.
func AlertText(a *entities.Alert) string {
	hc := a.HistoricalContext
	return fmt.Sprintf("%s. Ingredient %s at restaurant %d. Trend: %s. Avg daily use %.1f, avg daily waste %.1f.",
		a.Message, displayName(a.Key.IngredientID), a.Key.RestaurantID, trend(hc), hc.AvgDailyUse, hc.AvgDailyWaste)
}
