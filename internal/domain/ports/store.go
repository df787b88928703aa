package ports

import (
	"context"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// ActionStore persists actions. Every status change goes through
// CompareAndSwap so two writers can never both move an action out of the
// same status.
type ActionStore interface {
	// InsertAction stores a new action together with its creation audit entry.
	InsertAction(ctx context.Context, action *entities.Action, entry *entities.AuditEntry) error

	// FindAction returns the action or a NotFoundError.
	FindAction(ctx context.Context, id string) (*entities.Action, error)

	// ListActions returns all actions in insertion order.
	ListActions(ctx context.Context) ([]*entities.Action, error)

	// CompareAndSwap replaces the stored action with next only if its status is
	// still expected. A non-nil entry is appended to the audit log in the same
	// atomic step. Returns ErrStatusMismatch (wrapped) if the status changed.
	CompareAndSwap(ctx context.Context, expected entities.ActionStatus, next *entities.Action, entry *entities.AuditEntry) error
}

// AuditLog reads the append-only transition log.
type AuditLog interface {
	// ListAudit returns entries matching the query, newest first unless
	// q.Ascending is set.
	ListAudit(ctx context.Context, q entities.AuditQuery) ([]entities.AuditEntry, error)
}

// AlertStore persists admitted alerts.
type AlertStore interface {
	// SaveAlert stores a new alert.
	SaveAlert(ctx context.Context, alert *entities.Alert) error

	// FindAlert returns the alert or a NotFoundError.
	FindAlert(ctx context.Context, id string) (*entities.Alert, error)

	// FindLatestActiveAlert returns the newest non-superseded alert for key
	// created strictly after since. Returns nil, nil if there is none.
	FindLatestActiveAlert(ctx context.Context, key entities.DedupKey, since time.Time) (*entities.Alert, error)

	// AdmitAlert atomically checks the window of alert.Key and stores alert
	// unless an active alert created after since is at least as severe. A
	// less severe prior is superseded by alert in the same step. It returns
	// the active prior (nil if none) and whether alert was stored.
	AdmitAlert(ctx context.Context, alert *entities.Alert, since time.Time) (prior *entities.Alert, admitted bool, err error)

	// ListActiveAlerts returns non-superseded alerts created after since,
	// newest first.
	ListActiveAlerts(ctx context.Context, since time.Time) ([]*entities.Alert, error)
}

// Store is a complete backing store.
type Store interface {
	ActionStore
	AuditLog
	AlertStore

	// Close releases the underlying resources.
	Close() error
}
