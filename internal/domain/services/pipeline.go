package services

import (
	"context"
	"fmt"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/infrastructure/parsers"
)

// PipelineSummary counts what one pipeline run did.
type PipelineSummary struct {
	Loaded          int               `json:"loaded"`
	Skipped         int               `json:"skipped"`
	BelowConfidence int               `json:"below_confidence"`
	Events          int               `json:"events"`
	Classified      int               `json:"classified"`
	Admitted        int               `json:"admitted"`
	Escalated       int               `json:"escalated"`
	Suppressed      int               `json:"suppressed"`
	ActionsProposed int               `json:"actions_proposed"`
	Errors          []string          `json:"errors,omitempty"`
	Alerts          []*entities.Alert `json:"alerts,omitempty"`
	Actions         []string          `json:"action_ids,omitempty"`
}

// DefaultRestaurantID is assigned to records without a restaurant when the
// rules are not scoped to one.
const DefaultRestaurantID = 1

// Pipeline runs normalize, classify, admit and propose over a feed.
type Pipeline struct {
	rules    RuleConfig
	gate     *EligibilityGate
	proposer *ProposalGenerator
	indexer  *AlertIndexer
	opts     options
}

// NewPipeline creates a pipeline. indexer may be nil.
func NewPipeline(rules RuleConfig, gate *EligibilityGate, proposer *ProposalGenerator, indexer *AlertIndexer, opts ...Option) *Pipeline {
	return &Pipeline{
		rules:    rules,
		gate:     gate,
		proposer: proposer,
		indexer:  indexer,
		opts:     newOptions(opts),
	}
}

// Run processes raw classifier records. Invalid records are skipped and
// listed in Errors; the run continues.
func (p *Pipeline) Run(ctx context.Context, preds []parsers.RawPrediction) (*PipelineSummary, error) {
	restaurantID := p.rules.RestaurantID
	if restaurantID == 0 {
		restaurantID = DefaultRestaurantID
	}
	events, errs := Normalize(preds, NormalizeScope{
		RestaurantID:  restaurantID,
		MinConfidence: p.rules.MinConfidence,
		ObservedAt:    p.opts.stamp(),
	})
	for _, err := range errs {
		p.opts.logger.Warn("record skipped", "error", err)
	}

	summary, err := p.RunEvents(ctx, events)
	if err != nil {
		return summary, err
	}
	summary.Loaded = len(preds)
	summary.Skipped = len(errs)
	summary.BelowConfidence = len(preds) - len(errs) - len(events)
	for _, e := range errs {
		summary.Errors = append(summary.Errors, e.Error())
	}
	return summary, nil
}

// RunEvents processes already normalized events.
func (p *Pipeline) RunEvents(ctx context.Context, events []entities.RiskEvent) (*PipelineSummary, error) {
	summary := &PipelineSummary{Loaded: len(events), Events: len(events)}

	for _, ev := range events {
		severity := Classify(ev, p.rules)
		if severity == entities.SeverityNone {
			continue
		}
		summary.Classified++

		adm, err := p.gate.Evaluate(ctx, ev, severity)
		if err != nil {
			return summary, fmt.Errorf("evaluating %s: %w", ev.Key(), err)
		}
		switch adm.Outcome {
		case OutcomeSuppressed:
			summary.Suppressed++
			continue
		case OutcomeEscalated:
			summary.Escalated++
		default:
			summary.Admitted++
		}
		summary.Alerts = append(summary.Alerts, adm.Alert)

		actions, err := p.proposer.Propose(ctx, adm.Alert)
		for _, a := range actions {
			summary.Actions = append(summary.Actions, a.ID)
		}
		summary.ActionsProposed += len(actions)
		if err != nil {
			return summary, err
		}

		if p.indexer != nil {
			if err := p.indexer.Index(ctx, adm.Alert); err != nil {
				p.opts.logger.Warn("alert not indexed", "alert", adm.Alert.ID, "error", err)
			}
		}
	}

	p.opts.logger.Info("pipeline finished",
		"events", summary.Events, "classified", summary.Classified,
		"admitted", summary.Admitted, "escalated", summary.Escalated,
		"suppressed", summary.Suppressed, "actions", summary.ActionsProposed)
	return summary, nil
}
