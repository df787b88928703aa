package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
)

// Mode controls automatic approval and execution.
type Mode string

const (
	ModeOff     Mode = "off"
	ModeGuarded Mode = "guarded"
	ModeFull    Mode = "full"
)

// ParseMode converts a string to a Mode. Empty means off.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOff, nil
	case ModeOff, ModeGuarded, ModeFull:
		return m, nil
	default:
		return "", &entities.ValidationError{Field: "mode", Value: s, Message: "must be off, guarded or full"}
	}
}

// Decision is the autopilot verdict for one action.
type Decision string

const (
	DecisionAuto Decision = "auto"
	DecisionHold Decision = "hold"
	DecisionSkip Decision = "skip"
)

// Decide is the pure policy. Only proposed actions are considered.
// off holds everything; guarded acts on low and medium risk actions that do
// not require approval; full acts on everything.
func Decide(a *entities.Action, mode Mode) Decision {
	if a.Status != entities.StatusProposed {
		return DecisionSkip
	}
	switch mode {
	case ModeFull:
		return DecisionAuto
	case ModeGuarded:
		if a.RiskLevel.Rank() <= entities.RiskMedium.Rank() && !a.RequiresApproval {
			return DecisionAuto
		}
		return DecisionHold
	default:
		return DecisionHold
	}
}

// AutopilotResult lists what one run did, in creation order.
type AutopilotResult struct {
	Mode            Mode          `json:"mode"`
	AutoExecuted    []string      `json:"auto_executed"`
	HeldForApproval []string      `json:"held_for_approval"`
	Failed          []BulkFailure `json:"failed"`
}

// Autopilot applies the policy to every proposed action through the
// lifecycle manager, so its audit trail has the same shape as a manual one.
type Autopilot struct {
	actions   ports.ActionStore
	lifecycle *LifecycleManager
	opts      options
}

// NewAutopilot creates a new Autopilot.
func NewAutopilot(actions ports.ActionStore, lifecycle *LifecycleManager, opts ...Option) *Autopilot {
	return &Autopilot{
		actions:   actions,
		lifecycle: lifecycle,
		opts:      newOptions(opts),
	}
}

// Run evaluates all proposed actions. Auto actions are approved then
// executed in sequence before Run returns; a failure on one does not stop
// the others.
func (p *Autopilot) Run(ctx context.Context, mode Mode) (*AutopilotResult, error) {
	actions, err := p.actions.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}

	res := &AutopilotResult{
		Mode:            mode,
		AutoExecuted:    []string{},
		HeldForApproval: []string{},
		Failed:          []BulkFailure{},
	}
	for _, a := range actions {
		switch Decide(a, mode) {
		case DecisionHold:
			res.HeldForApproval = append(res.HeldForApproval, a.ID)
		case DecisionAuto:
			if err := p.autoExecute(ctx, a.ID); err != nil {
				p.opts.logger.Warn("autopilot action failed", "action", a.ID, "error", err)
				res.Failed = append(res.Failed, BulkFailure{ID: a.ID, Error: err.Error()})
				continue
			}
			res.AutoExecuted = append(res.AutoExecuted, a.ID)
		}
	}

	p.opts.logger.Info("autopilot run finished", "mode", mode,
		"auto_executed", len(res.AutoExecuted), "held", len(res.HeldForApproval), "failed", len(res.Failed))
	return res, nil
}

func (p *Autopilot) autoExecute(ctx context.Context, id string) error {
	if _, err := p.lifecycle.Approve(ctx, id, entities.ActorAutopilot); err != nil {
		return err
	}
	_, err := p.lifecycle.Execute(ctx, id, entities.ActorAutopilot)
	return err
}
