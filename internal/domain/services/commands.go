package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
)

// Session holds state that persists between commands from one operator,
// currently the accumulated FILTER predicate. Dispatch holds the session
// lock for the whole command, so commands within one session run one at a
// time.
type Session struct {
	mu     sync.Mutex
	Filter entities.ActionFilter
}

// CurrentFilter returns the accumulated filter.
func (s *Session) CurrentFilter() entities.ActionFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Filter
}

// CommandResult describes what a dispatched command did.
type CommandResult struct {
	Intent  entities.Intent       `json:"intent"`
	Filter  entities.ActionFilter `json:"filter"`
	Actions []*entities.Action    `json:"actions,omitempty"`
	Bulk    *BulkResult           `json:"bulk,omitempty"`
	Message string                `json:"message"`
}

// CommandDispatcher executes typed commands against the lifecycle. It never
// sees free text.
type CommandDispatcher struct {
	query     *QueryService
	lifecycle *LifecycleManager
	proposer  *ProposalGenerator
	alerts    ports.AlertStore
	gate      *EligibilityGate
	opts      options
}

// NewCommandDispatcher creates a new CommandDispatcher. gate supplies the
// alert window used by RESET.
func NewCommandDispatcher(
	query *QueryService,
	lifecycle *LifecycleManager,
	proposer *ProposalGenerator,
	alerts ports.AlertStore,
	gate *EligibilityGate,
	opts ...Option,
) *CommandDispatcher {
	return &CommandDispatcher{
		query:     query,
		lifecycle: lifecycle,
		proposer:  proposer,
		alerts:    alerts,
		gate:      gate,
		opts:      newOptions(opts),
	}
}

// Dispatch runs cmd for the given session and actor.
func (d *CommandDispatcher) Dispatch(ctx context.Context, s *Session, cmd *entities.Command, actor entities.Actor) (*CommandResult, error) {
	if cmd == nil {
		return nil, &entities.ValidationError{Field: "command", Message: "is required"}
	}
	if err := cmd.Filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d.opts.logger.Info("dispatching command", "intent", cmd.Intent, "filter", cmd.Filter.String(), "ids", len(cmd.ActionIDs), "actor", actor)

	switch cmd.Intent {
	case entities.IntentView:
		return d.view(ctx, s.Filter.Merge(cmd.Filter), entities.IntentView)
	case entities.IntentFilter:
		s.Filter = s.Filter.Merge(cmd.Filter)
		return d.view(ctx, s.Filter, entities.IntentFilter)
	case entities.IntentAdd:
		return d.add(ctx, s, cmd, actor)
	case entities.IntentModify:
		return d.modify(ctx, s, cmd, actor)
	case entities.IntentExecute:
		return d.execute(ctx, s, cmd, actor)
	case entities.IntentRemove:
		return d.remove(ctx, s, cmd, actor)
	case entities.IntentReset:
		return d.reset(ctx, s, actor)
	default:
		return nil, &entities.ValidationError{Field: "intent", Value: string(cmd.Intent), Message: "unknown intent"}
	}
}

func (d *CommandDispatcher) view(ctx context.Context, f entities.ActionFilter, intent entities.Intent) (*CommandResult, error) {
	actions, err := d.query.Prioritize(ctx, f)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Intent:  intent,
		Filter:  f,
		Actions: actions,
		Message: fmt.Sprintf("%d action(s) match %s", len(actions), f.String()),
	}, nil
}

func (d *CommandDispatcher) add(ctx context.Context, s *Session, cmd *entities.Command, actor entities.Actor) (*CommandResult, error) {
	if cmd.Draft == nil {
		return nil, &entities.ValidationError{Field: "draft", Message: "is required for ADD"}
	}
	a, err := d.lifecycle.Create(ctx, *cmd.Draft, actor)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Intent:  entities.IntentAdd,
		Filter:  s.Filter,
		Actions: []*entities.Action{a},
		Message: fmt.Sprintf("added %s action %s", a.Type, a.ID),
	}, nil
}

func (d *CommandDispatcher) modify(ctx context.Context, s *Session, cmd *entities.Command, actor entities.Actor) (*CommandResult, error) {
	op := cmd.Operation
	if op != entities.OpApprove && op != entities.OpReject {
		return nil, &entities.ValidationError{Field: "operation", Value: string(op), Message: "MODIFY supports approve or reject"}
	}
	ids, err := d.targets(ctx, s, cmd, entities.StatusProposed)
	if err != nil {
		return nil, err
	}
	res, err := d.lifecycle.Bulk(ctx, BulkRequest{Operation: op, ActionIDs: ids, Reason: cmd.Reason}, actor)
	if err != nil {
		return nil, err
	}
	return d.bulkResult(entities.IntentModify, s, res, string(op)), nil
}

// execute runs approved targets. Proposed targets that do not require
// approval are approved first; the rest fail with a state conflict.
func (d *CommandDispatcher) execute(ctx context.Context, s *Session, cmd *entities.Command, actor entities.Actor) (*CommandResult, error) {
	ids, err := d.targets(ctx, s, cmd, "")
	if err != nil {
		return nil, err
	}

	var approve []string
	for _, id := range ids {
		a, err := d.lifecycle.Get(ctx, id)
		if err != nil {
			continue // reported by the execute pass
		}
		if a.Status == entities.StatusProposed && !a.RequiresApproval {
			approve = append(approve, id)
		}
	}
	if len(approve) > 0 {
		if _, err := d.lifecycle.Bulk(ctx, BulkRequest{Operation: entities.OpApprove, ActionIDs: approve}, actor); err != nil {
			return nil, err
		}
	}

	res, err := d.lifecycle.Bulk(ctx, BulkRequest{Operation: entities.OpExecute, ActionIDs: ids}, actor)
	if err != nil {
		return nil, err
	}
	return d.bulkResult(entities.IntentExecute, s, res, "executed"), nil
}

func (d *CommandDispatcher) remove(ctx context.Context, s *Session, cmd *entities.Command, actor entities.Actor) (*CommandResult, error) {
	ids, err := d.targets(ctx, s, cmd, "")
	if err != nil {
		return nil, err
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "removed by operator"
	}
	res, err := d.lifecycle.Bulk(ctx, BulkRequest{Operation: entities.OpReject, ActionIDs: ids, Reason: reason}, actor)
	if err != nil {
		return nil, err
	}
	return d.bulkResult(entities.IntentRemove, s, res, "rejected"), nil
}

// reset rejects every proposed action, clears the session filter and
// re-proposes actions for the alerts still active in the window.
func (d *CommandDispatcher) reset(ctx context.Context, s *Session, actor entities.Actor) (*CommandResult, error) {
	proposed, err := d.query.List(ctx, ActionQuery{Filter: entities.ActionFilter{Status: entities.StatusProposed}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(proposed))
	for _, a := range proposed {
		ids = append(ids, a.ID)
	}
	res, err := d.lifecycle.Bulk(ctx, BulkRequest{Operation: entities.OpReject, ActionIDs: ids, Reason: "queue reset"}, actor)
	if err != nil {
		return nil, err
	}
	s.Filter = entities.ActionFilter{}

	since := d.opts.stamp().Add(-d.gate.Window())
	alerts, err := d.alerts.ListActiveAlerts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("listing active alerts: %w", err)
	}
	var fresh []*entities.Action
	for _, alert := range alerts {
		actions, err := d.proposer.Propose(ctx, alert)
		fresh = append(fresh, actions...)
		if err != nil {
			return nil, err
		}
	}

	return &CommandResult{
		Intent:  entities.IntentReset,
		Filter:  s.Filter,
		Actions: fresh,
		Bulk:    res,
		Message: fmt.Sprintf("rejected %d proposed action(s), re-proposed %d from %d active alert(s)", len(res.Processed), len(fresh), len(alerts)),
	}, nil
}

// targets returns explicit ids (prefixes resolved) or, without ids, the ids
// matching the session filter merged with the command filter. A filter-only
// command must narrow something so a bare REMOVE cannot reject everything.
// status, when set, further restricts filter matches.
func (d *CommandDispatcher) targets(ctx context.Context, s *Session, cmd *entities.Command, status entities.ActionStatus) ([]string, error) {
	if len(cmd.ActionIDs) > 0 {
		return d.query.ResolveAll(ctx, cmd.ActionIDs)
	}
	f := s.Filter.Merge(cmd.Filter)
	if f.IsEmpty() {
		return nil, &entities.ValidationError{Field: "action_ids", Message: "give action ids or a filter"}
	}
	if status != "" && f.Status == "" {
		f.Status = status
	}
	list, err := d.query.List(ctx, ActionQuery{Filter: f})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, a := range list {
		if a.Status.IsTerminal() {
			continue
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (d *CommandDispatcher) bulkResult(intent entities.Intent, s *Session, res *BulkResult, verb string) *CommandResult {
	return &CommandResult{
		Intent:  intent,
		Filter:  s.Filter,
		Bulk:    res,
		Message: fmt.Sprintf("%s %d action(s), %d failed", verb, len(res.Processed), len(res.Failed)),
	}
}
