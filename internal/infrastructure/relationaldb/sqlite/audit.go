package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// appendAudit chains entry to the last stored entry and inserts it.
func appendAudit(ctx context.Context, tx dbtx, entry *entities.AuditEntry) error {
	var prevHash string
	err := tx.QueryRowContext(ctx, `SELECT entry_hash FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading audit chain head: %w", err)
	}
	entry.Seal(prevHash)

	query := `
		INSERT INTO audit_log (action_id, event, prior_status, new_status, actor, notes, snapshot, ts, prev_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := tx.ExecContext(ctx, query,
		entry.ActionID,
		entry.Event,
		nullString(string(entry.PriorStatus)),
		string(entry.NewStatus),
		string(entry.Actor),
		nullString(entry.Notes),
		string(entry.Snapshot),
		toUnix(entry.Timestamp),
		entry.PrevHash,
		entry.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListAudit returns audit entries matching q.
func (r *Repository) ListAudit(ctx context.Context, q entities.AuditQuery) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action_id, event, prior_status, new_status, actor, notes, snapshot, ts, prev_hash, entry_hash
		FROM audit_log
		WHERE (? = '' OR action_id = ?) AND (? = '' OR new_status = ?)
	`
	if q.Ascending {
		query += ` ORDER BY id ASC`
	} else {
		query += ` ORDER BY id DESC`
	}
	args := []any{q.ActionID, q.ActionID, string(q.NewStatus), string(q.NewStatus)}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	if q.Limit > 0 {
		entries = make([]entities.AuditEntry, 0, q.Limit)
	}

	for rows.Next() {
		var e entities.AuditEntry
		var prior, notes sql.NullString
		var event, newStatus, actor, snapshot string
		var ts int64

		if err := rows.Scan(
			&e.ID,
			&e.ActionID,
			&event,
			&prior,
			&newStatus,
			&actor,
			&notes,
			&snapshot,
			&ts,
			&e.PrevHash,
			&e.EntryHash,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Event = event
		e.PriorStatus = entities.ActionStatus(prior.String)
		e.NewStatus = entities.ActionStatus(newStatus)
		e.Actor = entities.Actor(actor)
		e.Notes = notes.String
		e.Snapshot = []byte(snapshot)
		e.Timestamp = fromUnix(ts)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
