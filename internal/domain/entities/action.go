package entities

import (
	"fmt"
	"math"
	"time"
)

// ActionType is the kind of remediation step an action performs.
type ActionType string

const (
	ActionDraftPO           ActionType = "draft_po"
	ActionCreateTask        ActionType = "create_task"
	ActionAdjustPar         ActionType = "adjust_par"
	ActionUpdateDeliveryETA ActionType = "update_delivery_eta"
	ActionTransferStock     ActionType = "transfer_stock"
	ActionAcknowledgeAlert  ActionType = "acknowledge_alert"
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionDraftPO,
	ActionCreateTask,
	ActionAdjustPar,
	ActionUpdateDeliveryETA,
	ActionTransferStock,
	ActionAcknowledgeAlert,
}

// OwnerRole is the team responsible for an action.
type OwnerRole string

const (
	RolePurchasing OwnerRole = "Purchasing"
	RoleKitchen    OwnerRole = "Kitchen"
	RoleVendorOps  OwnerRole = "VendorOps"
)

var ownerRoles = map[ActionType]OwnerRole{
	ActionDraftPO:           RolePurchasing,
	ActionCreateTask:        RoleKitchen,
	ActionAdjustPar:         RolePurchasing,
	ActionUpdateDeliveryETA: RoleVendorOps,
	ActionTransferStock:     RoleKitchen,
	ActionAcknowledgeAlert:  RoleKitchen,
}

// ParseActionType converts a string to an ActionType.
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if _, ok := ownerRoles[t]; !ok {
		return "", fmt.Errorf("invalid action type: %s", s)
	}
	return t, nil
}

// IsValid reports whether t is a known action type.
func (t ActionType) IsValid() bool {
	_, ok := ownerRoles[t]
	return ok
}

// OwnerRole returns the team that owns actions of this type.
func (t ActionType) OwnerRole() OwnerRole {
	return ownerRoles[t]
}

// Compensable reports whether an executed action of this type can be rolled back.
func (t ActionType) Compensable() bool {
	return t.IsValid() && t != ActionAcknowledgeAlert
}

// ActionStatus is a lifecycle state.
type ActionStatus string

const (
	StatusProposed   ActionStatus = "proposed"
	StatusApproved   ActionStatus = "approved"
	StatusExecuted   ActionStatus = "executed"
	StatusRejected   ActionStatus = "rejected"
	StatusRolledBack ActionStatus = "rolled_back"

	// Transient markers held while an external side effect is in flight.
	StatusExecuting   ActionStatus = "executing"
	StatusRollingBack ActionStatus = "rolling_back"
)

// ParseActionStatus converts a string to a persisted ActionStatus.
func ParseActionStatus(s string) (ActionStatus, error) {
	switch ActionStatus(s) {
	case StatusProposed, StatusApproved, StatusExecuted, StatusRejected, StatusRolledBack,
		StatusExecuting, StatusRollingBack:
		return ActionStatus(s), nil
	default:
		return "", fmt.Errorf("invalid action status: %s", s)
	}
}

// IsTerminal reports whether no further transition is possible.
func (s ActionStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusRolledBack
}

// IsTransient reports whether s is an in-flight marker.
func (s ActionStatus) IsTransient() bool {
	return s == StatusExecuting || s == StatusRollingBack
}

// Payload holds the type-specific fields of an action. Fields that do not
// apply to an action's type are left empty.
type Payload struct {
	Ingredient   string  `json:"ingredient"`
	Quantity     float64 `json:"quantity,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	Vendor       string  `json:"vendor,omitempty"`
	DueTime      string  `json:"due_time,omitempty"`
	ParChangePct float64 `json:"par_change_pct,omitempty"`
	FromLocation string  `json:"from_location,omitempty"`
	ToLocation   string  `json:"to_location,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// ExecutionResult is what the side-effect executor returned for an action.
type ExecutionResult struct {
	Reference string         `json:"reference"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Action is a remediation step moving through the approval lifecycle.
type Action struct {
	ID               string           `json:"action_id"`
	Type             ActionType       `json:"action_type"`
	Payload          Payload          `json:"payload"`
	Status           ActionStatus     `json:"status"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	OwnerRole        OwnerRole        `json:"owner_role"`
	Reason           string           `json:"reason"`
	ExpectedImpact   string           `json:"expected_impact,omitempty"`
	RequiresApproval bool             `json:"requires_approval"`
	AlertID          string           `json:"alert_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	ExecutionResult  *ExecutionResult `json:"execution_result"`
	ExecutionError   string           `json:"execution_error,omitempty"`
	// MarkedAt is when the executing or rolling_back marker was written.
	// Nil outside those statuses.
	MarkedAt *time.Time `json:"marked_at,omitempty"`
}

// Clone returns a deep copy of the action.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	c := *a
	if a.ExecutionResult != nil {
		r := *a.ExecutionResult
		if a.ExecutionResult.Details != nil {
			r.Details = make(map[string]any, len(a.ExecutionResult.Details))
			for k, v := range a.ExecutionResult.Details {
				r.Details[k] = v
			}
		}
		c.ExecutionResult = &r
	}
	if a.MarkedAt != nil {
		t := *a.MarkedAt
		c.MarkedAt = &t
	}
	return &c
}

// Validate checks that the action has the fields every action needs.
func (a *Action) Validate() error {
	if !a.Type.IsValid() {
		return &ValidationError{Field: "action_type", Value: string(a.Type), Message: "unknown action type"}
	}
	if a.Payload.Ingredient == "" {
		return &ValidationError{Field: "payload.ingredient", Message: "is required"}
	}
	if !a.RiskLevel.IsValid() {
		return &ValidationError{Field: "risk_level", Value: string(a.RiskLevel), Message: "unknown risk level"}
	}
	if a.Payload.Quantity < 0 {
		return &ValidationError{Field: "payload.quantity", Value: fmt.Sprint(a.Payload.Quantity), Message: "must not be negative"}
	}
	return nil
}

// MaxAutoParChangePct is the largest par change that may skip manual approval.
const MaxAutoParChangePct = 10.0

// RequiresApproval reports whether an action of this type and payload must be
// approved by a person before it can run automatically.
func RequiresApproval(t ActionType, p Payload) bool {
	switch t {
	case ActionAcknowledgeAlert, ActionCreateTask, ActionDraftPO:
		return false
	case ActionAdjustPar:
		return math.Abs(p.ParChangePct) > MaxAutoParChangePct
	default:
		return true
	}
}
