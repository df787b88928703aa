package handlers

import (
	"context"
	"errors"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// ActionsHandler applies lifecycle operations to actions named by id or
// unique id prefix.
type ActionsHandler struct {
	queryService *services.QueryService
	lifecycle    *services.LifecycleManager
}

// NewActionsHandler creates a new actions handler.
func NewActionsHandler(queryService *services.QueryService, lifecycle *services.LifecycleManager) *ActionsHandler {
	return &ActionsHandler{
		queryService: queryService,
		lifecycle:    lifecycle,
	}
}

// Add creates a proposed action from a draft.
func (h *ActionsHandler) Add(ctx context.Context, d entities.ActionDraft, actor entities.Actor) (*entities.Action, error) {
	return h.lifecycle.Create(ctx, d, actor)
}

// Approve approves one action.
func (h *ActionsHandler) Approve(ctx context.Context, idOrPrefix string, actor entities.Actor) (*entities.Action, error) {
	id, err := h.queryService.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return h.lifecycle.Approve(ctx, id, actor)
}

// Reject rejects one action.
func (h *ActionsHandler) Reject(ctx context.Context, idOrPrefix string, actor entities.Actor, reason string) (*entities.Action, error) {
	id, err := h.queryService.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return h.lifecycle.Reject(ctx, id, actor, reason)
}

// Execute executes one approved action.
func (h *ActionsHandler) Execute(ctx context.Context, idOrPrefix string, actor entities.Actor) (*entities.Action, error) {
	id, err := h.queryService.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return h.lifecycle.Execute(ctx, id, actor)
}

// Rollback compensates one executed action.
func (h *ActionsHandler) Rollback(ctx context.Context, idOrPrefix string, actor entities.Actor, reason string) (*entities.Action, error) {
	id, err := h.queryService.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return h.lifecycle.Rollback(ctx, id, actor, reason)
}

// Reconcile resolves an action stuck in a transient status.
func (h *ActionsHandler) Reconcile(ctx context.Context, idOrPrefix string, actor entities.Actor, notes string) (*entities.Action, error) {
	id, err := h.queryService.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return h.lifecycle.Reconcile(ctx, id, actor, notes)
}

// ReconcileAll reconciles every action in a transient status, as after a
// crash. Markers whose side effect may still be running are skipped. It
// returns the reconciled actions.
func (h *ActionsHandler) ReconcileAll(ctx context.Context, actor entities.Actor) ([]*entities.Action, error) {
	var out []*entities.Action
	for _, status := range []entities.ActionStatus{entities.StatusExecuting, entities.StatusRollingBack} {
		stuck, err := h.queryService.List(ctx, services.ActionQuery{Filter: entities.ActionFilter{Status: status}})
		if err != nil {
			return out, err
		}
		for _, a := range stuck {
			fixed, err := h.lifecycle.Reconcile(ctx, a.ID, actor, "reconciled after restart")
			if errors.Is(err, entities.ErrSideEffectInFlight) {
				continue
			}
			if err != nil {
				return out, err
			}
			out = append(out, fixed)
		}
	}
	return out, nil
}

// Bulk applies one operation to many actions. Ids that cannot be resolved
// are reported as failures with the rest.
func (h *ActionsHandler) Bulk(ctx context.Context, req services.BulkRequest, actor entities.Actor) (*services.BulkResult, error) {
	resolved := make([]string, 0, len(req.ActionIDs))
	unresolved := make(map[int]error)
	for i, raw := range req.ActionIDs {
		id, err := h.queryService.Resolve(ctx, raw)
		if err != nil {
			unresolved[i] = err
			continue
		}
		resolved = append(resolved, id)
	}

	res, err := h.lifecycle.Bulk(ctx, services.BulkRequest{Operation: req.Operation, ActionIDs: resolved, Reason: req.Reason}, actor)
	if err != nil {
		return nil, err
	}
	if len(unresolved) == 0 {
		return res, nil
	}

	failed := make([]services.BulkFailure, 0, len(res.Failed)+len(unresolved))
	for i, raw := range req.ActionIDs {
		if err, ok := unresolved[i]; ok {
			failed = append(failed, services.BulkFailure{ID: raw, Error: err.Error()})
		}
	}
	res.Failed = append(failed, res.Failed...)
	return res, nil
}
