// Package simulated provides an Executor that performs no external calls.
// It backs local runs and demos where no operations API is configured.
package simulated

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

var refPrefixes = map[entities.ActionType]string{
	entities.ActionDraftPO:           "PO",
	entities.ActionCreateTask:        "TASK",
	entities.ActionAdjustPar:         "PAR",
	entities.ActionUpdateDeliveryETA: "ETA",
	entities.ActionTransferStock:     "XFER",
	entities.ActionAcknowledgeAlert:  "ACK",
}

// Executor returns a random reference per call, e.g. PO-1F3A9C2E, so
// references stay unique across runs sharing a durable store. It keeps no
// state; the lifecycle's compare-and-swap guarantees a reference is
// compensated at most once.
type Executor struct{}

// New creates a new simulated executor.
func New() *Executor {
	return &Executor{}
}

// Perform returns a reference for the action.
func (e *Executor) Perform(ctx context.Context, actionType entities.ActionType, payload entities.Payload) (*entities.ExecutionResult, error) {
	prefix, ok := refPrefixes[actionType]
	if !ok {
		return nil, fmt.Errorf("unsupported action type: %s", actionType)
	}

	id := uuid.New()
	return &entities.ExecutionResult{
		Reference: fmt.Sprintf("%s-%X", prefix, id[:4]),
		Message:   fmt.Sprintf("simulated %s for %s", strings.ReplaceAll(string(actionType), "_", " "), payload.Ingredient),
		Details:   map[string]any{"simulated": true, "operation_id": id.String()},
	}, nil
}

// Compensate accepts any reference it could have issued. Acknowledgements
// cannot be reversed.
func (e *Executor) Compensate(ctx context.Context, actionType entities.ActionType, payload entities.Payload, result *entities.ExecutionResult) error {
	if !actionType.Compensable() {
		return fmt.Errorf("%s: %w", actionType, entities.ErrNoCompensator)
	}
	if result == nil || result.Reference == "" {
		return fmt.Errorf("no execution reference to compensate for %s", payload.Ingredient)
	}
	if prefix := refPrefixes[actionType]; !strings.HasPrefix(result.Reference, prefix+"-") {
		return fmt.Errorf("reference %s was not issued for %s", result.Reference, actionType)
	}
	return nil
}
