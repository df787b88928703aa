// Package memory provides an in-process implementation of ports.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// Store keeps actions, alerts and the audit log in memory. A single mutex
// makes every compare-and-swap and its audit append one atomic step.
type Store struct {
	mu      sync.RWMutex
	actions map[string]*entities.Action
	order   []string
	alerts  map[string]*entities.Alert
	audit   []entities.AuditEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		actions: make(map[string]*entities.Action),
		alerts:  make(map[string]*entities.Alert),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// InsertAction stores a new action and its creation entry.
func (s *Store) InsertAction(ctx context.Context, action *entities.Action, entry *entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actions[action.ID]; ok {
		return fmt.Errorf("inserting action: duplicate id %s", action.ID)
	}
	s.actions[action.ID] = action.Clone()
	s.order = append(s.order, action.ID)
	if entry != nil {
		s.appendLocked(entry)
	}
	return nil
}

// FindAction returns a copy of the action.
func (s *Store) FindAction(ctx context.Context, id string) (*entities.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.actions[id]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "action", ID: id}
	}
	return a.Clone(), nil
}

// ListActions returns copies of all actions in insertion order.
func (s *Store) ListActions(ctx context.Context) ([]*entities.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Action, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.actions[id].Clone())
	}
	return out, nil
}

// CompareAndSwap replaces the action if its status is still expected.
// Only the mutable fields are taken from next.
func (s *Store) CompareAndSwap(ctx context.Context, expected entities.ActionStatus, next *entities.Action, entry *entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.actions[next.ID]
	if !ok {
		return &entities.NotFoundError{Kind: "action", ID: next.ID}
	}
	if cur.Status != expected {
		return fmt.Errorf("action %s is %s, expected %s: %w", next.ID, cur.Status, expected, entities.ErrStatusMismatch)
	}

	updated := cur.Clone()
	updated.Status = next.Status
	updated.UpdatedAt = next.UpdatedAt
	updated.ExecutionError = next.ExecutionError
	if next.ExecutionResult != nil {
		updated.ExecutionResult = next.Clone().ExecutionResult
	} else {
		updated.ExecutionResult = nil
	}
	s.actions[next.ID] = updated

	if entry != nil {
		s.appendLocked(entry)
	}
	return nil
}

func (s *Store) appendLocked(entry *entities.AuditEntry) {
	prev := ""
	if n := len(s.audit); n > 0 {
		prev = s.audit[n-1].EntryHash
	}
	entry.ID = int64(len(s.audit) + 1)
	entry.Seal(prev)
	s.audit = append(s.audit, *entry)
}

// ListAudit returns entries matching q.
func (s *Store) ListAudit(ctx context.Context, q entities.AuditQuery) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.AuditEntry
	for _, e := range s.audit {
		if q.ActionID != "" && e.ActionID != q.ActionID {
			continue
		}
		if q.NewStatus != "" && e.NewStatus != q.NewStatus {
			continue
		}
		out = append(out, e)
	}
	if !q.Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SaveAlert stores a copy of the alert.
func (s *Store) SaveAlert(ctx context.Context, alert *entities.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[alert.ID]; ok {
		return fmt.Errorf("saving alert: duplicate id %s", alert.ID)
	}
	a := *alert
	s.alerts[alert.ID] = &a
	return nil
}

// FindAlert returns a copy of the alert.
func (s *Store) FindAlert(ctx context.Context, id string) (*entities.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "alert", ID: id}
	}
	c := *a
	return &c, nil
}

// FindLatestActiveAlert returns the newest active alert for key created after since.
func (s *Store) FindLatestActiveAlert(ctx context.Context, key entities.DedupKey, since time.Time) (*entities.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestActiveLocked(key, since)
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

// AdmitAlert stores alert unless an active alert for the same key created
// after since is at least as severe. A less severe one is superseded.
func (s *Store) AdmitAlert(ctx context.Context, alert *entities.Alert, since time.Time) (*entities.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.latestActiveLocked(alert.Key, since)
	var prior *entities.Alert
	if latest != nil {
		c := *latest
		prior = &c
		if !alert.Severity.Escalates(latest.Severity) {
			return prior, false, nil
		}
	}
	if _, ok := s.alerts[alert.ID]; ok {
		return nil, false, fmt.Errorf("saving alert: duplicate id %s", alert.ID)
	}

	a := *alert
	s.alerts[alert.ID] = &a
	if latest != nil {
		latest.SupersededBy = alert.ID
		prior.SupersededBy = alert.ID
	}
	return prior, true, nil
}

func (s *Store) latestActiveLocked(key entities.DedupKey, since time.Time) *entities.Alert {
	var latest *entities.Alert
	for _, a := range s.alerts {
		if a.Key != key || !a.IsActive() || !a.CreatedAt.After(since) {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest
}

// ListActiveAlerts returns active alerts created after since, newest first.
func (s *Store) ListActiveAlerts(ctx context.Context, since time.Time) ([]*entities.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Alert
	for _, a := range s.alerts {
		if a.IsActive() && a.CreatedAt.After(since) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
