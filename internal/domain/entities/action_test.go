package entities

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Escalates(t *testing.T) {
	tests := []struct {
		name     string
		next     Severity
		prior    Severity
		expected bool
	}{
		{name: "medium to high escalates", next: SeverityHigh, prior: SeverityMedium, expected: true},
		{name: "high to critical escalates", next: SeverityCritical, prior: SeverityHigh, expected: true},
		{name: "equal does not escalate", next: SeverityHigh, prior: SeverityHigh, expected: false},
		{name: "lower does not escalate", next: SeverityMedium, prior: SeverityCritical, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.next.Escalates(tt.prior))
		})
	}
}

func TestActionType_OwnerRoleAndCompensable(t *testing.T) {
	tests := []struct {
		actionType  ActionType
		role        OwnerRole
		compensable bool
	}{
		{ActionDraftPO, RolePurchasing, true},
		{ActionCreateTask, RoleKitchen, true},
		{ActionAdjustPar, RolePurchasing, true},
		{ActionUpdateDeliveryETA, RoleVendorOps, true},
		{ActionTransferStock, RoleKitchen, true},
		{ActionAcknowledgeAlert, RoleKitchen, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.actionType), func(t *testing.T) {
			assert.Equal(t, tt.role, tt.actionType.OwnerRole())
			assert.Equal(t, tt.compensable, tt.actionType.Compensable())
		})
	}

	assert.False(t, ActionType("launch_rocket").Compensable())
}

func TestRequiresApproval(t *testing.T) {
	assert.False(t, RequiresApproval(ActionDraftPO, Payload{}))
	assert.False(t, RequiresApproval(ActionAdjustPar, Payload{ParChangePct: -10}))
	assert.True(t, RequiresApproval(ActionAdjustPar, Payload{ParChangePct: 15}))
	assert.True(t, RequiresApproval(ActionUpdateDeliveryETA, Payload{}))
	assert.True(t, RequiresApproval(ActionTransferStock, Payload{}))
}

func TestAction_Clone(t *testing.T) {
	a := &Action{
		ID:              "a1",
		ExecutionResult: &ExecutionResult{Reference: "PO-1", Details: map[string]any{"k": "v"}},
	}
	c := a.Clone()
	c.ExecutionResult.Details["k"] = "changed"
	c.Status = StatusExecuted

	assert.Equal(t, "v", a.ExecutionResult.Details["k"])
	assert.Empty(t, a.Status)
}

func TestActionFilter_MatchesAndMerge(t *testing.T) {
	a := &Action{
		Type:      ActionDraftPO,
		Status:    StatusProposed,
		RiskLevel: RiskHigh,
		OwnerRole: RolePurchasing,
		Reason:    "Alert abc: stockout risk",
		Payload:   Payload{Ingredient: "chicken_breast"},
	}

	assert.True(t, ActionFilter{}.Matches(a))
	assert.True(t, ActionFilter{Ingredient: "CHICKEN", OwnerRole: "purchasing"}.Matches(a))
	assert.False(t, ActionFilter{Ingredient: "chicken", Status: StatusApproved}.Matches(a))
	assert.True(t, ActionFilter{ReasonContains: "stockout"}.Matches(a))

	merged := ActionFilter{Status: StatusProposed, Ingredient: "chicken"}.Merge(ActionFilter{Ingredient: "salmon", RiskLevel: RiskHigh})
	assert.Equal(t, ActionFilter{Status: StatusProposed, Ingredient: "salmon", RiskLevel: RiskHigh}, merged)
}

func TestErrors_Classification(t *testing.T) {
	wrapped := fmt.Errorf("approving: %w", &StateConflictError{ActionID: "a1", Op: "approve", Current: StatusExecuted})
	assert.True(t, IsStateConflict(wrapped))
	assert.Contains(t, wrapped.Error(), "wrong state")
	assert.False(t, IsNotFound(wrapped))

	cause := errors.New("timeout")
	execErr := &ExecutionError{ActionID: "a1", Op: "execute", Err: cause}
	assert.ErrorIs(t, execErr, cause)

	ve := &ValidationError{Field: "confidence", Value: "1.5", Message: "must be within [0,1]", Line: 3}
	assert.Contains(t, ve.Error(), "line 3")
}

func TestAuditChain(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	a := &Action{ID: "a1", Type: ActionDraftPO, Status: StatusProposed, CreatedAt: now, UpdatedAt: now}

	first, err := NewAuditEntry(a, EventCreated, "", ActorSystem, "")
	require.NoError(t, err)
	first.Seal("")

	a.Status = StatusApproved
	a.UpdatedAt = now.Add(time.Minute)
	second, err := NewAuditEntry(a, EventApproved, StatusProposed, ActorHuman, "")
	require.NoError(t, err)
	second.Seal(first.EntryHash)

	chain := []AuditEntry{*first, *second}
	assert.Equal(t, -1, VerifyAuditChain(chain))

	snap, err := chain[1].Action()
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, snap.Status)

	chain[1].Notes = "tampered"
	assert.Equal(t, 1, VerifyAuditChain(chain))
}
