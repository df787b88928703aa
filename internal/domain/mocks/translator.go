package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// Translator is a mock implementation of ports.IntentTranslator. It is safe
// for concurrent use.
type Translator struct {
	Command *entities.Command
	Err     error

	mu sync.Mutex
	// Call tracking
	LastText   string
	LastFilter entities.ActionFilter
}

// Translate returns the configured command or error.
func (m *Translator) Translate(ctx context.Context, text string, current entities.ActionFilter) (*entities.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastText = text
	m.LastFilter = current
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Command, nil
}
