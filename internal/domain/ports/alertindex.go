package ports

import (
	"context"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// AlertIndex stores alert embeddings for similarity search.
type AlertIndex interface {
	// SaveAlert stores an alert with its embedding.
	SaveAlert(ctx context.Context, alert *entities.Alert, embedding []float32) error

	// SearchAlerts returns the alerts closest to embedding. A zero restaurantID
	// searches every restaurant.
	SearchAlerts(ctx context.Context, embedding []float32, restaurantID int, limit int) ([]entities.AlertMatch, error)
}
