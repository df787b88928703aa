package ports

import (
	"context"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// HistoryProvider returns usage history for an ingredient at a restaurant.
type HistoryProvider interface {
	Context(ctx context.Context, restaurantID int, ingredientID string) (entities.HistoricalContext, error)
}
