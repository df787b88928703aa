package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Actor identifies who caused a transition.
type Actor string

const (
	ActorHuman     Actor = "human"
	ActorAutopilot Actor = "autopilot"
	ActorSystem    Actor = "system"
)

// Audit events.
const (
	EventCreated         = "created"
	EventApproved        = "approved"
	EventRejected        = "rejected"
	EventExecuted        = "executed"
	EventExecutionFailed = "execution_failed"
	EventRolledBack      = "rolled_back"
	EventReconciled      = "reconciled"
)

// AuditEntry is one append-only record of an action transition.
// PriorStatus is empty for the creation entry.
type AuditEntry struct {
	ID          int64           `json:"id"`
	ActionID    string          `json:"action_id"`
	Event       string          `json:"event"`
	PriorStatus ActionStatus    `json:"prior_status,omitempty"`
	NewStatus   ActionStatus    `json:"new_status"`
	Actor       Actor           `json:"actor"`
	Notes       string          `json:"notes,omitempty"`
	Snapshot    json.RawMessage `json:"action_snapshot"`
	Timestamp   time.Time       `json:"timestamp"`
	PrevHash    string          `json:"prev_hash"`
	EntryHash   string          `json:"entry_hash"`
}

// NewAuditEntry builds an entry for a transition of a to its current status.
func NewAuditEntry(a *Action, event string, prior ActionStatus, actor Actor, notes string) (*AuditEntry, error) {
	snap, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding action snapshot: %w", err)
	}
	return &AuditEntry{
		ActionID:    a.ID,
		Event:       event,
		PriorStatus: prior,
		NewStatus:   a.Status,
		Actor:       actor,
		Notes:       notes,
		Snapshot:    snap,
		Timestamp:   a.UpdatedAt,
	}, nil
}

// Action decodes the snapshot stored with the entry.
func (e *AuditEntry) Action() (*Action, error) {
	var a Action
	if err := json.Unmarshal(e.Snapshot, &a); err != nil {
		return nil, fmt.Errorf("decoding action snapshot: %w", err)
	}
	return &a, nil
}

// Seal links the entry to its predecessor and sets EntryHash.
func (e *AuditEntry) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.EntryHash = ComputeAuditHash(e)
}

// ComputeAuditHash returns the SHA-256 of the entry's content and PrevHash.
// The ID is excluded because stores assign it on insert.
func ComputeAuditHash(e *AuditEntry) string {
	payload := map[string]any{
		"action_id":    e.ActionID,
		"event":        e.Event,
		"prior_status": e.PriorStatus,
		"new_status":   e.NewStatus,
		"actor":        e.Actor,
		"notes":        e.Notes,
		"snapshot":     hex.EncodeToString(e.Snapshot),
		"timestamp":    e.Timestamp.UnixNano(),
		"prev_hash":    e.PrevHash,
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// VerifyAuditChain checks entries given in append order. It returns the index
// of the first entry that does not match, or -1 if the chain is intact.
func VerifyAuditChain(entries []AuditEntry) int {
	prev := ""
	for i := range entries {
		e := &entries[i]
		if e.PrevHash != prev || ComputeAuditHash(e) != e.EntryHash {
			return i
		}
		prev = e.EntryHash
	}
	return -1
}

// AuditQuery selects audit entries. Zero fields do not filter.
type AuditQuery struct {
	ActionID  string
	NewStatus ActionStatus
	Limit     int
	// Ascending returns entries in append order instead of newest first.
	Ascending bool
}
