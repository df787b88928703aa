package ports

import (
	"context"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// Executor performs the external side effect of an action (purchase orders,
// tickets, vendor updates) and its inverse.
type Executor interface {
	// Perform carries out the action and returns what the external system reported.
	Perform(ctx context.Context, actionType entities.ActionType, payload entities.Payload) (*entities.ExecutionResult, error)

	// Compensate undoes a previously performed action.
	Compensate(ctx context.Context, actionType entities.ActionType, payload entities.Payload, result *entities.ExecutionResult) error
}
