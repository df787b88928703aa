package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

const actionColumns = `id, action_type, status, risk_level, owner_role, payload, reason,
	expected_impact, requires_approval, alert_id, created_at, updated_at,
	execution_result, execution_error, marked_at`

// InsertAction stores a new action and its creation audit entry atomically.
func (r *Repository) InsertAction(ctx context.Context, action *entities.Action, entry *entities.AuditEntry) error {
	payload, err := json.Marshal(action.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	result, err := marshalResult(action.ExecutionResult)
	if err != nil {
		return err
	}

	return r.withTx(ctx, func(tx dbtx) error {
		query := `
			INSERT INTO actions (` + actionColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			action.ID,
			string(action.Type),
			string(action.Status),
			string(action.RiskLevel),
			string(action.OwnerRole),
			string(payload),
			action.Reason,
			nullString(action.ExpectedImpact),
			action.RequiresApproval,
			nullString(action.AlertID),
			toUnix(action.CreatedAt),
			toUnix(action.UpdatedAt),
			result,
			nullString(action.ExecutionError),
			nullTime(action.MarkedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting action: %w", err)
		}
		if entry != nil {
			return appendAudit(ctx, tx, entry)
		}
		return nil
	})
}

// FindAction finds an action by id.
func (r *Repository) FindAction(ctx context.Context, id string) (*entities.Action, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entities.NotFoundError{Kind: "action", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListActions returns all actions in insertion order.
func (r *Repository) ListActions(ctx context.Context) ([]*entities.Action, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+actionColumns+` FROM actions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	actions := make([]*entities.Action, 0, 32)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CompareAndSwap writes next only if the stored status is still expected,
// appending entry in the same transaction.
func (r *Repository) CompareAndSwap(ctx context.Context, expected entities.ActionStatus, next *entities.Action, entry *entities.AuditEntry) error {
	result, err := marshalResult(next.ExecutionResult)
	if err != nil {
		return err
	}

	return r.withTx(ctx, func(tx dbtx) error {
		query := `
			UPDATE actions
			SET status = ?, updated_at = ?, execution_result = ?, execution_error = ?, marked_at = ?
			WHERE id = ? AND status = ?
		`
		res, err := tx.ExecContext(ctx, query,
			string(next.Status),
			toUnix(next.UpdatedAt),
			result,
			nullString(next.ExecutionError),
			nullTime(next.MarkedAt),
			next.ID,
			string(expected),
		)
		if err != nil {
			return fmt.Errorf("updating action: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking update: %w", err)
		}
		if n == 0 {
			var current string
			err := tx.QueryRowContext(ctx, `SELECT status FROM actions WHERE id = ?`, next.ID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return &entities.NotFoundError{Kind: "action", ID: next.ID}
			}
			if err != nil {
				return fmt.Errorf("reading action status: %w", err)
			}
			return fmt.Errorf("action %s is %s, expected %s: %w", next.ID, current, expected, entities.ErrStatusMismatch)
		}
		if entry != nil {
			return appendAudit(ctx, tx, entry)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*entities.Action, error) {
	var a entities.Action
	var actionType, status, riskLevel, ownerRole, payload string
	var expectedImpact, alertID, result, execErr sql.NullString
	var createdAt, updatedAt int64
	var markedAt sql.NullInt64

	err := row.Scan(
		&a.ID,
		&actionType,
		&status,
		&riskLevel,
		&ownerRole,
		&payload,
		&a.Reason,
		&expectedImpact,
		&a.RequiresApproval,
		&alertID,
		&createdAt,
		&updatedAt,
		&result,
		&execErr,
		&markedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning action: %w", err)
	}

	a.Type = entities.ActionType(actionType)
	a.Status = entities.ActionStatus(status)
	a.RiskLevel = entities.RiskLevel(riskLevel)
	a.OwnerRole = entities.OwnerRole(ownerRole)
	a.ExpectedImpact = expectedImpact.String
	a.AlertID = alertID.String
	a.ExecutionError = execErr.String
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)
	if markedAt.Valid {
		t := fromUnix(markedAt.Int64)
		a.MarkedAt = &t
	}

	if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	if result.Valid && result.String != "" {
		a.ExecutionResult = &entities.ExecutionResult{}
		if err := json.Unmarshal([]byte(result.String), a.ExecutionResult); err != nil {
			return nil, fmt.Errorf("unmarshaling execution result: %w", err)
		}
	}
	return &a, nil
}

func marshalResult(res *entities.ExecutionResult) (sql.NullString, error) {
	if res == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling execution result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
