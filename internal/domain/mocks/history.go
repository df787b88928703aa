package mocks

import (
	"context"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// History is a mock implementation of ports.HistoryProvider.
type History struct {
	// ByIngredient returns a fixed context per ingredient id.
	ByIngredient map[string]entities.HistoricalContext
	Default      entities.HistoricalContext
	Err          error
}

// Context returns the configured context or error.
func (m *History) Context(ctx context.Context, restaurantID int, ingredientID string) (entities.HistoricalContext, error) {
	if m.Err != nil {
		return entities.HistoricalContext{}, m.Err
	}
	if hc, ok := m.ByIngredient[ingredientID]; ok {
		return hc, nil
	}
	return m.Default, nil
}
