package ports

import (
	"context"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// IntentTranslator turns operator free text into a typed command.
// current is the session's accumulated filter, given as context.
type IntentTranslator interface {
	Translate(ctx context.Context, text string, current entities.ActionFilter) (*entities.Command, error)
}
