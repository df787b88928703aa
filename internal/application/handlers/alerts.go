package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// ErrNoAlertIndex is returned by Similar when no alert index is configured.
var ErrNoAlertIndex = errors.New("alert index not configured (set qdrant.host)")

// AlertsHandler handles alert queries.
type AlertsHandler struct {
	alerts  ports.AlertStore
	indexer *services.AlertIndexer
	window  time.Duration
	now     func() time.Time
}

// NewAlertsHandler creates a new alerts handler. indexer may be nil.
func NewAlertsHandler(alerts ports.AlertStore, indexer *services.AlertIndexer, window time.Duration) *AlertsHandler {
	return &AlertsHandler{
		alerts:  alerts,
		indexer: indexer,
		window:  window,
		now:     time.Now,
	}
}

// Active returns unsuperseded alerts created within the dedup window,
// newest first.
func (h *AlertsHandler) Active(ctx context.Context) ([]*entities.Alert, error) {
	alerts, err := h.alerts.ListActiveAlerts(ctx, h.now().UTC().Add(-h.window))
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return alerts, nil
}

// Get returns one alert.
func (h *AlertsHandler) Get(ctx context.Context, id string) (*entities.Alert, error) {
	return h.alerts.FindAlert(ctx, id)
}

// Similar finds past alerts resembling query.
func (h *AlertsHandler) Similar(ctx context.Context, query string, restaurantID, limit int) ([]entities.AlertMatch, error) {
	if h.indexer == nil {
		return nil, ErrNoAlertIndex
	}
	return h.indexer.Similar(ctx, query, restaurantID, limit)
}
