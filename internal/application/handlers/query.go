package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

// QueryHandler handles read-only action and audit queries.
type QueryHandler struct {
	queryService *services.QueryService
	lifecycle    *services.LifecycleManager
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queryService *services.QueryService, lifecycle *services.LifecycleManager) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		lifecycle:    lifecycle,
	}
}

// ActionDetail is one action with its audit history.
type ActionDetail struct {
	Action  *entities.Action      `json:"action"`
	History []entities.AuditEntry `json:"history"`
}

// AuditVerification reports the state of the audit hash chain.
type AuditVerification struct {
	Entries  int   `json:"entries"`
	Intact   bool  `json:"intact"`
	BrokenAt int64 `json:"broken_at,omitempty"`
}

// List returns actions matching q.
func (h *QueryHandler) List(ctx context.Context, q services.ActionQuery) ([]*entities.Action, error) {
	actions, err := h.queryService.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	return actions, nil
}

// Grouped returns matching actions keyed by owner role.
func (h *QueryHandler) Grouped(ctx context.Context, f entities.ActionFilter) (map[entities.OwnerRole][]*entities.Action, error) {
	return h.queryService.GroupByOwner(ctx, f)
}

// Show returns an action, found by id or unique prefix, with its history.
func (h *QueryHandler) Show(ctx context.Context, idOrPrefix string) (*ActionDetail, error) {
	action, err := h.queryService.Get(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	history, err := h.lifecycle.History(ctx, action.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return &ActionDetail{Action: action, History: history}, nil
}

// Audit returns audit entries. An action id prefix is resolved first.
func (h *QueryHandler) Audit(ctx context.Context, q entities.AuditQuery) ([]entities.AuditEntry, error) {
	if q.ActionID != "" {
		id, err := h.queryService.Resolve(ctx, q.ActionID)
		if err != nil {
			return nil, err
		}
		q.ActionID = id
	}
	return h.lifecycle.Audit(ctx, q)
}

// Verify checks the audit hash chain.
func (h *QueryHandler) Verify(ctx context.Context) (*AuditVerification, error) {
	entries, err := h.lifecycle.Audit(ctx, entities.AuditQuery{Ascending: true})
	if err != nil {
		return nil, err
	}
	bad, err := h.lifecycle.VerifyAudit(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifying audit log: %w", err)
	}
	return &AuditVerification{Entries: len(entries), Intact: bad == 0, BrokenAt: bad}, nil
}
