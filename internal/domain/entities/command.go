package entities

import (
	"fmt"
	"strings"
)

// Intent is the closed set of operator intents an external translator may emit.
type Intent string

const (
	IntentView    Intent = "VIEW"
	IntentFilter  Intent = "FILTER"
	IntentAdd     Intent = "ADD"
	IntentModify  Intent = "MODIFY"
	IntentExecute Intent = "EXECUTE"
	IntentRemove  Intent = "REMOVE"
	IntentReset   Intent = "RESET"
)

// ParseIntent converts a string to an Intent, ignoring case.
func ParseIntent(s string) (Intent, error) {
	switch i := Intent(strings.ToUpper(strings.TrimSpace(s))); i {
	case IntentView, IntentFilter, IntentAdd, IntentModify, IntentExecute, IntentRemove, IntentReset:
		return i, nil
	default:
		return "", &ValidationError{Field: "intent", Value: s, Message: "unknown intent"}
	}
}

// Operation names a lifecycle operation that can be applied in bulk.
type Operation string

const (
	OpApprove  Operation = "approve"
	OpReject   Operation = "reject"
	OpExecute  Operation = "execute"
	OpRollback Operation = "rollback"
)

// ParseOperation converts a string to a bulk Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpApprove, OpReject, OpExecute:
		return op, nil
	default:
		return "", &ValidationError{Field: "operation", Value: s, Message: "must be approve, execute or reject"}
	}
}

// ActionFilter is a typed predicate over actions. Empty fields match
// everything; set fields are combined with AND.
type ActionFilter struct {
	Status         ActionStatus `json:"status,omitempty"`
	OwnerRole      OwnerRole    `json:"owner_role,omitempty"`
	RiskLevel      RiskLevel    `json:"risk_level,omitempty"`
	ActionType     ActionType   `json:"action_type,omitempty"`
	Ingredient     string       `json:"ingredient,omitempty"`
	ReasonContains string       `json:"reason_contains,omitempty"`
}

// IsEmpty reports whether the filter matches every action.
func (f ActionFilter) IsEmpty() bool {
	return f == ActionFilter{}
}

// Matches reports whether a satisfies every set predicate. Ingredient and
// reason predicates are case-insensitive substring matches.
func (f ActionFilter) Matches(a *Action) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.OwnerRole != "" && !strings.EqualFold(string(a.OwnerRole), string(f.OwnerRole)) {
		return false
	}
	if f.RiskLevel != "" && a.RiskLevel != f.RiskLevel {
		return false
	}
	if f.ActionType != "" && a.Type != f.ActionType {
		return false
	}
	if f.Ingredient != "" && !containsFold(a.Payload.Ingredient, f.Ingredient) {
		return false
	}
	if f.ReasonContains != "" && !containsFold(a.Reason, f.ReasonContains) {
		return false
	}
	return true
}

// Merge returns f with every field set in next overriding the same field.
func (f ActionFilter) Merge(next ActionFilter) ActionFilter {
	if next.Status != "" {
		f.Status = next.Status
	}
	if next.OwnerRole != "" {
		f.OwnerRole = next.OwnerRole
	}
	if next.RiskLevel != "" {
		f.RiskLevel = next.RiskLevel
	}
	if next.ActionType != "" {
		f.ActionType = next.ActionType
	}
	if next.Ingredient != "" {
		f.Ingredient = next.Ingredient
	}
	if next.ReasonContains != "" {
		f.ReasonContains = next.ReasonContains
	}
	return f
}

// Validate checks enumerated fields.
func (f ActionFilter) Validate() error {
	if f.Status != "" {
		if _, err := ParseActionStatus(string(f.Status)); err != nil {
			return &ValidationError{Field: "status", Value: string(f.Status), Message: "unknown status"}
		}
	}
	if f.RiskLevel != "" && !f.RiskLevel.IsValid() {
		return &ValidationError{Field: "risk_level", Value: string(f.RiskLevel), Message: "unknown risk level"}
	}
	if f.ActionType != "" && !f.ActionType.IsValid() {
		return &ValidationError{Field: "action_type", Value: string(f.ActionType), Message: "unknown action type"}
	}
	return nil
}

// String renders the set predicates, for logs and CLI output.
func (f ActionFilter) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	add("status", string(f.Status))
	add("owner_role", string(f.OwnerRole))
	add("risk_level", string(f.RiskLevel))
	add("action_type", string(f.ActionType))
	add("ingredient", f.Ingredient)
	add("reason", f.ReasonContains)
	if len(parts) == 0 {
		return "(all)"
	}
	return strings.Join(parts, " ")
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ActionDraft describes an action before the lifecycle manager creates it.
type ActionDraft struct {
	Type      ActionType `json:"action_type"`
	Payload   Payload    `json:"payload"`
	RiskLevel RiskLevel  `json:"risk_level,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	// ExpectedImpact is a short description of what the action achieves.
	ExpectedImpact string `json:"expected_impact,omitempty"`
	AlertID        string `json:"alert_id,omitempty"`
}

// Command is a typed instruction produced by the intent translator.
type Command struct {
	Intent    Intent       `json:"intent"`
	Filter    ActionFilter `json:"filter"`
	ActionIDs []string     `json:"action_ids,omitempty"`
	// Operation applies to MODIFY: approve or reject.
	Operation Operation    `json:"operation,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Draft     *ActionDraft `json:"draft,omitempty"`
}
