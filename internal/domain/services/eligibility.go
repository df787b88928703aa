package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/google/uuid"
)

// DefaultDedupWindow is how long an alert suppresses repeats of the same key.
const DefaultDedupWindow = 24 * time.Hour

// Outcome is the result of the eligibility check.
type Outcome string

const (
	OutcomeAdmitted   Outcome = "admitted"
	OutcomeEscalated  Outcome = "escalated"
	OutcomeSuppressed Outcome = "suppressed"
)

// Admission reports what the gate decided for one event. Alert is the new
// alert when admitted or escalated. Prior is the alert that was superseded
// (escalated) or that caused suppression.
type Admission struct {
	Outcome Outcome         `json:"outcome"`
	Alert   *entities.Alert `json:"alert,omitempty"`
	Prior   *entities.Alert `json:"prior,omitempty"`
}

// Admitted reports whether a new alert was created.
func (a *Admission) Admitted() bool {
	return a.Outcome == OutcomeAdmitted || a.Outcome == OutcomeEscalated
}

// EligibilityGate decides whether a classified event becomes a new alert.
type EligibilityGate struct {
	alerts  ports.AlertStore
	history ports.HistoryProvider
	window  time.Duration
	locks   keyedMutex
	opts    options
}

// NewEligibilityGate creates a gate. A non-positive window uses DefaultDedupWindow.
func NewEligibilityGate(alerts ports.AlertStore, history ports.HistoryProvider, window time.Duration, opts ...Option) *EligibilityGate {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &EligibilityGate{
		alerts:  alerts,
		history: history,
		window:  window,
		opts:    newOptions(opts),
	}
}

// Window returns the dedup window.
func (g *EligibilityGate) Window() time.Duration {
	return g.window
}

// Evaluate admits, escalates, or suppresses an event of the given severity.
// The window lookup and the admission are one AlertStore.AdmitAlert call, so
// they are atomic per key even across processes sharing a store. The per-key
// lock only keeps concurrent runs in this process from queuing on the store.
func (g *EligibilityGate) Evaluate(ctx context.Context, event entities.RiskEvent, severity entities.Severity) (*Admission, error) {
	if severity.Rank() == 0 {
		return nil, &entities.ValidationError{Field: "severity", Value: string(severity), Message: "events without a severity band cannot be admitted"}
	}
	key := event.Key()
	log := g.opts.logger.With("key", key.String(), "severity", severity)

	// Fetched outside the lock; history calls can be slow.
	history := g.historicalContext(ctx, key)

	unlock := g.locks.Lock(key.String())
	defer unlock()

	now := g.opts.stamp()
	alert := &entities.Alert{
		ID:                uuid.New().String(),
		Key:               key,
		Severity:          severity,
		Message:           alertMessage(event, severity),
		Event:             event,
		HistoricalContext: history,
		CreatedAt:         now,
	}
	prior, admitted, err := g.alerts.AdmitAlert(ctx, alert, now.Add(-g.window))
	if err != nil {
		return nil, fmt.Errorf("admitting alert: %w", err)
	}

	switch {
	case !admitted:
		log.Info("alert suppressed", "prior_alert", prior.ID, "prior_severity", prior.Severity)
		return &Admission{Outcome: OutcomeSuppressed, Prior: prior}, nil
	case prior == nil:
		log.Info("alert admitted", "alert", alert.ID)
		return &Admission{Outcome: OutcomeAdmitted, Alert: alert}, nil
	default:
		log.Info("alert escalated", "alert", alert.ID, "supersedes", prior.ID, "prior_severity", prior.Severity)
		return &Admission{Outcome: OutcomeEscalated, Alert: alert, Prior: prior}, nil
	}
}

func (g *EligibilityGate) historicalContext(ctx context.Context, key entities.DedupKey) entities.HistoricalContext {
	if g.history == nil {
		return entities.HistoricalContext{Trend: entities.TrendNoData}
	}
	hc, err := g.history.Context(ctx, key.RestaurantID, key.IngredientID)
	if err != nil {
		g.opts.logger.Warn("historical context unavailable", "key", key.String(), "error", err)
		return entities.HistoricalContext{Trend: entities.TrendNoData}
	}
	return hc
}

func alertMessage(e entities.RiskEvent, severity entities.Severity) string {
	name := displayName(e.IngredientID)
	switch e.EventType {
	case entities.EventSurplusRisk:
		return fmt.Sprintf("%s surplus risk for %s: ~%.1f units expected over, %d day(s) out (%d%% confidence)",
			titleCase(string(severity)), name, e.Magnitude, e.DaysUntil, percent(e.Confidence))
	default:
		return fmt.Sprintf("%s stockout risk for %s in %d day(s) (%d%% confidence)",
			titleCase(string(severity)), name, e.DaysUntil, percent(e.Confidence))
	}
}
