package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

const alertColumns = `id, restaurant_id, ingredient_id, event_type, severity, message,
	risk_event, historical_context, created_at, superseded_by`

// SaveAlert stores a new alert.
func (r *Repository) SaveAlert(ctx context.Context, alert *entities.Alert) error {
	return insertAlert(ctx, r.db, alert)
}

// AdmitAlert stores alert unless an active alert for the same key created
// after since is at least as severe. A less severe one is superseded by alert.
// The lookup, insert and supersede share one write transaction.
func (r *Repository) AdmitAlert(ctx context.Context, alert *entities.Alert, since time.Time) (*entities.Alert, bool, error) {
	var prior *entities.Alert
	admitted := false

	err := r.withTx(ctx, func(tx dbtx) error {
		var err error
		prior, err = latestActiveAlert(ctx, tx, alert.Key, since)
		if err != nil {
			return err
		}
		if prior != nil && !alert.Severity.Escalates(prior.Severity) {
			return nil
		}
		if err := insertAlert(ctx, tx, alert); err != nil {
			return err
		}
		if prior != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE alerts SET superseded_by = ? WHERE id = ?`, alert.ID, prior.ID); err != nil {
				return fmt.Errorf("superseding alert %s: %w", prior.ID, err)
			}
			prior.SupersededBy = alert.ID
		}
		admitted = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return prior, admitted, nil
}

// FindAlert finds an alert by id.
func (r *Repository) FindAlert(ctx context.Context, id string) (*entities.Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entities.NotFoundError{Kind: "alert", ID: id}
	}
	return a, err
}

// FindLatestActiveAlert returns the newest non-superseded alert for key
// created after since, or nil if none exists.
func (r *Repository) FindLatestActiveAlert(ctx context.Context, key entities.DedupKey, since time.Time) (*entities.Alert, error) {
	return latestActiveAlert(ctx, r.db, key, since)
}

func insertAlert(ctx context.Context, q dbtx, alert *entities.Alert) error {
	event, err := json.Marshal(alert.Event)
	if err != nil {
		return fmt.Errorf("marshaling risk event: %w", err)
	}
	history, err := json.Marshal(alert.HistoricalContext)
	if err != nil {
		return fmt.Errorf("marshaling historical context: %w", err)
	}

	query := `INSERT INTO alerts (` + alertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, query,
		alert.ID,
		alert.Key.RestaurantID,
		alert.Key.IngredientID,
		string(alert.Key.EventType),
		string(alert.Severity),
		alert.Message,
		string(event),
		string(history),
		toUnix(alert.CreatedAt),
		nullString(alert.SupersededBy),
	)
	if err != nil {
		return fmt.Errorf("saving alert: %w", err)
	}
	return nil
}

func latestActiveAlert(ctx context.Context, q dbtx, key entities.DedupKey, since time.Time) (*entities.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE restaurant_id = ? AND ingredient_id = ? AND event_type = ?
			AND created_at > ? AND superseded_by IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := q.QueryRowContext(ctx, query, key.RestaurantID, key.IngredientID, string(key.EventType), toUnix(since))
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListActiveAlerts returns non-superseded alerts created after since, newest first.
func (r *Repository) ListActiveAlerts(ctx context.Context, since time.Time) ([]*entities.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE created_at > ? AND superseded_by IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, toUnix(since))
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*entities.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*entities.Alert, error) {
	var a entities.Alert
	var eventType, severity, event, history string
	var createdAt int64
	var supersededBy sql.NullString

	err := row.Scan(
		&a.ID,
		&a.Key.RestaurantID,
		&a.Key.IngredientID,
		&eventType,
		&severity,
		&a.Message,
		&event,
		&history,
		&createdAt,
		&supersededBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning alert: %w", err)
	}

	a.Key.EventType = entities.EventType(eventType)
	a.Severity = entities.Severity(severity)
	a.CreatedAt = fromUnix(createdAt)
	a.SupersededBy = supersededBy.String

	if err := json.Unmarshal([]byte(event), &a.Event); err != nil {
		return nil, fmt.Errorf("unmarshaling risk event: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &a.HistoricalContext); err != nil {
		return nil, fmt.Errorf("unmarshaling historical context: %w", err)
	}
	return &a, nil
}
