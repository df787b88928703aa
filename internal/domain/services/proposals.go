package services

import (
	"context"
	"fmt"
	"math"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

// Planner tuning.
const (
	reorderDays        = 5
	surplusParCutPct   = -10.0
	defaultOrderUnit   = "units"
	physicalCountNotes = "Verify actual on-hand count and report back."
	useFirstNotes      = "Prioritise use in today's specials or prep. Consider a small promotion."
)

// Plan maps an admitted alert to action drafts. It is deterministic and has
// no side effects. Every draft carries the alert's severity as its risk level.
func Plan(alert *entities.Alert) []entities.ActionDraft {
	ev := alert.Event
	hc := alert.HistoricalContext
	name := displayName(ev.IngredientID)
	risk := entities.RiskLevelFromSeverity(alert.Severity)
	ref := fmt.Sprintf("Alert %s", alert.ID)

	var drafts []entities.ActionDraft
	switch ev.EventType {
	case entities.EventStockoutRisk:
		drafts = append(drafts, entities.ActionDraft{
			Type: entities.ActionDraftPO,
			Payload: entities.Payload{
				Ingredient: ev.IngredientID,
				Quantity:   reorderQuantity(hc),
				Unit:       defaultOrderUnit,
				DueTime:    fmt.Sprintf("within %d day(s)", max(1, ev.DaysUntil-1)),
				Notes:      fmt.Sprintf("Avg daily use: %.1f, supply est: %s days", hc.AvgDailyUse, supplyEstimate(hc)),
			},
			RiskLevel:      risk,
			Reason:         fmt.Sprintf("%s: stockout risk at %d%% confidence, %d day(s) out. Trend: %s.", ref, percent(ev.Confidence), ev.DaysUntil, trend(hc)),
			ExpectedImpact: fmt.Sprintf("Prevent stockout in ~%d day(s) for %s", ev.DaysUntil, name),
			AlertID:        alert.ID,
		})
		if alert.Severity == entities.SeverityCritical {
			drafts = append(drafts,
				entities.ActionDraft{
					Type:           entities.ActionCreateTask,
					Payload:        entities.Payload{Ingredient: ev.IngredientID, DueTime: "today", Notes: physicalCountNotes},
					RiskLevel:      risk,
					Reason:         fmt.Sprintf("%s: critical stockout predicted for %s, physical count needed.", ref, name),
					ExpectedImpact: "Accurate inventory count to validate the prediction.",
					AlertID:        alert.ID,
				},
				entities.ActionDraft{
					Type:           entities.ActionUpdateDeliveryETA,
					Payload:        entities.Payload{Ingredient: ev.IngredientID, DueTime: "expedite", Notes: "Request earliest possible delivery for the open order."},
					RiskLevel:      risk,
					Reason:         fmt.Sprintf("%s: critical stockout in %d day(s) for %s.", ref, ev.DaysUntil, name),
					ExpectedImpact: fmt.Sprintf("Bring the next %s delivery forward", name),
					AlertID:        alert.ID,
				},
			)
		}

	case entities.EventSurplusRisk:
		drafts = append(drafts, entities.ActionDraft{
			Type:           entities.ActionCreateTask,
			Payload:        entities.Payload{Ingredient: ev.IngredientID, DueTime: "today", Notes: useFirstNotes},
			RiskLevel:      risk,
			Reason:         fmt.Sprintf("%s: surplus risk of ~%.1f units at %d%% confidence. Avg daily waste: %.1f.", ref, ev.Magnitude, percent(ev.Confidence), hc.AvgDailyWaste),
			ExpectedImpact: fmt.Sprintf("Reduce surplus/waste risk for %s", name),
			AlertID:        alert.ID,
		})
		if hc.Trend == entities.TrendDeclining && hc.AvgDailyUse > 0 {
			drafts = append(drafts, entities.ActionDraft{
				Type:           entities.ActionAdjustPar,
				Payload:        entities.Payload{Ingredient: ev.IngredientID, ParChangePct: surplusParCutPct, Notes: "Usage declining, reduce par to align with demand."},
				RiskLevel:      risk,
				Reason:         fmt.Sprintf("%s: usage trend is declining for %s.", ref, name),
				ExpectedImpact: "Reduce over-ordering by ~10%, cutting waste.",
				AlertID:        alert.ID,
			})
		}
	}
	return drafts
}

// reorderQuantity covers reorderDays of average use, capped at the largest
// safe order. Zero means no usage history.
func reorderQuantity(hc entities.HistoricalContext) float64 {
	if hc.AvgDailyUse <= 0 {
		return 0
	}
	qty := math.Round(hc.AvgDailyUse * reorderDays)
	if hc.MaxSafeOrderQty > 0 && qty > hc.MaxSafeOrderQty {
		qty = math.Floor(hc.MaxSafeOrderQty)
	}
	return qty
}

func supplyEstimate(hc entities.HistoricalContext) string {
	if hc.LatestDaysOfSupply <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", hc.LatestDaysOfSupply)
}

func trend(hc entities.HistoricalContext) string {
	if hc.Trend == "" {
		return entities.TrendNoData
	}
	return hc.Trend
}

// ProposalGenerator persists planned drafts through the lifecycle manager.
type ProposalGenerator struct {
	lifecycle *LifecycleManager
}

// NewProposalGenerator creates a new ProposalGenerator.
func NewProposalGenerator(lifecycle *LifecycleManager) *ProposalGenerator {
	return &ProposalGenerator{lifecycle: lifecycle}
}

// Propose plans and creates proposed actions for an admitted alert.
func (g *ProposalGenerator) Propose(ctx context.Context, alert *entities.Alert) ([]*entities.Action, error) {
	drafts := Plan(alert)
	actions := make([]*entities.Action, 0, len(drafts))
	for _, d := range drafts {
		a, err := g.lifecycle.Create(ctx, d, entities.ActorSystem)
		if err != nil {
			return actions, fmt.Errorf("proposing %s for alert %s: %w", d.Type, alert.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
