package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// AlertIndex is a mock implementation of ports.AlertIndex.
type AlertIndex struct {
	Matches []entities.AlertMatch
	SaveErr error
	Err     error

	mu    sync.Mutex
	saved []string
}

// SaveAlert records the alert id.
func (m *AlertIndex) SaveAlert(ctx context.Context, alert *entities.Alert, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saved = append(m.saved, alert.ID)
	return nil
}

// SearchAlerts returns the configured matches, up to limit.
func (m *AlertIndex) SearchAlerts(ctx context.Context, embedding []float32, restaurantID int, limit int) ([]entities.AlertMatch, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Matches) > limit {
		return m.Matches[:limit], nil
	}
	return m.Matches, nil
}

// SavedIDs returns the ids of alerts saved so far.
func (m *AlertIndex) SavedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.saved...)
}
