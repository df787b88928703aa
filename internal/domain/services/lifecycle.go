package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LifecycleManager owns action state. Every transition is a compare-and-swap
// on (action id, expected status) that appends exactly one audit entry; a
// failed precondition changes nothing.
//
//	proposed -> approved | rejected
//	approved -> executed | rejected
//	executed -> rolled_back
type LifecycleManager struct {
	actions  ports.ActionStore
	audit    ports.AuditLog
	executor ports.Executor
	opts     options

	// inflight holds ids whose side effect is running in this process.
	inflight sync.Map
}

// NewLifecycleManager creates a new LifecycleManager.
func NewLifecycleManager(actions ports.ActionStore, audit ports.AuditLog, executor ports.Executor, opts ...Option) *LifecycleManager {
	return &LifecycleManager{
		actions:  actions,
		audit:    audit,
		executor: executor,
		opts:     newOptions(opts),
	}
}

// Create validates a draft and stores it as a proposed action with its
// creation audit entry.
func (m *LifecycleManager) Create(ctx context.Context, d entities.ActionDraft, actor entities.Actor) (*entities.Action, error) {
	if d.RiskLevel == "" {
		d.RiskLevel = entities.RiskLow
	}
	d.Payload.Ingredient = strings.TrimSpace(d.Payload.Ingredient)

	now := m.opts.stamp()
	a := &entities.Action{
		ID:               uuid.New().String(),
		Type:             d.Type,
		Payload:          d.Payload,
		Status:           entities.StatusProposed,
		RiskLevel:        d.RiskLevel,
		OwnerRole:        d.Type.OwnerRole(),
		Reason:           d.Reason,
		ExpectedImpact:   d.ExpectedImpact,
		RequiresApproval: entities.RequiresApproval(d.Type, d.Payload),
		AlertID:          d.AlertID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Reason == "" {
		a.Reason = fmt.Sprintf("Created by %s", actor)
	}

	entry, err := entities.NewAuditEntry(a, entities.EventCreated, "", actor, "")
	if err != nil {
		return nil, err
	}
	if err := m.actions.InsertAction(ctx, a, entry); err != nil {
		return nil, fmt.Errorf("creating action: %w", err)
	}

	m.opts.logger.Info("action proposed", "action", a.ID, "type", a.Type, "risk", a.RiskLevel, "actor", actor)
	return a, nil
}

// Get returns an action by exact id.
func (m *LifecycleManager) Get(ctx context.Context, id string) (*entities.Action, error) {
	return m.actions.FindAction(ctx, id)
}

// Approve moves a proposed action to approved.
func (m *LifecycleManager) Approve(ctx context.Context, id string, actor entities.Actor) (*entities.Action, error) {
	return m.transition(ctx, id, string(entities.OpApprove),
		[]entities.ActionStatus{entities.StatusProposed},
		entities.StatusApproved, entities.EventApproved, actor, "")
}

// Reject moves a proposed or approved action to rejected.
func (m *LifecycleManager) Reject(ctx context.Context, id string, actor entities.Actor, reason string) (*entities.Action, error) {
	return m.transition(ctx, id, string(entities.OpReject),
		[]entities.ActionStatus{entities.StatusProposed, entities.StatusApproved},
		entities.StatusRejected, entities.EventRejected, actor, reason)
}

// Execute runs the side effect of an approved action. The action is held in
// the executing marker while the executor runs, so a second caller sees a
// state conflict instead of firing the side effect again. On failure the
// action returns to proposed with ExecutionError set and must be approved
// again before a retry.
func (m *LifecycleManager) Execute(ctx context.Context, id string, actor entities.Actor) (*entities.Action, error) {
	cur, err := m.actions.FindAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != entities.StatusApproved {
		return nil, conflict(cur, string(entities.OpExecute), entities.StatusApproved)
	}

	marker := m.mark(cur, entities.StatusExecuting)
	if err := m.actions.CompareAndSwap(ctx, entities.StatusApproved, marker, nil); err != nil {
		return nil, m.swapError(ctx, err, id, string(entities.OpExecute), entities.StatusApproved)
	}
	m.inflight.Store(id, struct{}{})
	defer m.inflight.Delete(id)

	log := m.opts.logger.With("action", id, "type", cur.Type, "actor", actor)
	result, perr := m.executor.Perform(ctx, cur.Type, cur.Payload)

	// Resolve the marker even if the caller gave up.
	resolveCtx := context.WithoutCancel(ctx)
	next := cur.Clone()
	next.UpdatedAt = m.opts.stamp()

	if perr != nil {
		next.Status = entities.StatusProposed
		next.ExecutionError = perr.Error()
		execErr := &entities.ExecutionError{ActionID: id, Op: string(entities.OpExecute), Err: perr}
		log.Warn("execution failed", "error", perr)
		if err := m.swap(resolveCtx, entities.StatusExecuting, next, entities.EventExecutionFailed, entities.StatusApproved, actor, perr.Error()); err != nil {
			// A lost swap means the marker was reconciled to proposed already.
			if errors.Is(err, entities.ErrStatusMismatch) {
				return nil, execErr
			}
			return nil, fmt.Errorf("recording failed execution of %s: %w", id, err)
		}
		return next, execErr
	}

	next.Status = entities.StatusExecuted
	next.ExecutionResult = result
	next.ExecutionError = ""
	if err := m.swap(resolveCtx, entities.StatusExecuting, next, entities.EventExecuted, entities.StatusApproved, actor, ""); err != nil {
		if errors.Is(err, entities.ErrStatusMismatch) {
			return m.recordLateResult(resolveCtx, id, result, actor)
		}
		return nil, fmt.Errorf("recording execution of %s: %w", id, err)
	}
	log.Info("action executed")
	return next, nil
}

// recordLateResult applies a side effect that completed after its executing
// marker was reconciled by another process. The action moves straight to
// executed from proposed or approved so the side effect is not fired again.
func (m *LifecycleManager) recordLateResult(ctx context.Context, id string, result *entities.ExecutionResult, actor entities.Actor) (*entities.Action, error) {
	var ref string
	if result != nil {
		ref = result.Reference
	}
	cur, err := m.actions.FindAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != entities.StatusProposed && cur.Status != entities.StatusApproved {
		m.opts.logger.Error("side effect result arrived after the action moved on", "action", id, "status", cur.Status, "reference", ref)
		return nil, &entities.ExecutionError{ActionID: id, Op: string(entities.OpExecute),
			Err: fmt.Errorf("side effect %s completed but action is now %s", ref, cur.Status)}
	}

	next := cur.Clone()
	next.Status = entities.StatusExecuted
	next.ExecutionResult = result
	next.ExecutionError = ""
	next.UpdatedAt = m.opts.stamp()
	if err := m.swap(ctx, cur.Status, next, entities.EventExecuted, cur.Status, actor, "result arrived after reconcile"); err != nil {
		return nil, fmt.Errorf("recording late execution of %s (reference %s): %w", id, ref, err)
	}
	m.opts.logger.Warn("late execution result recorded", "action", id, "reference", ref)
	return next, nil
}

// Rollback invokes the compensating operation of an executed action and
// moves it to rolled_back. Types without a compensator fail with
// ErrNoCompensator. A failed compensation leaves the action executed.
func (m *LifecycleManager) Rollback(ctx context.Context, id string, actor entities.Actor, reason string) (*entities.Action, error) {
	cur, err := m.actions.FindAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != entities.StatusExecuted {
		return nil, conflict(cur, string(entities.OpRollback), entities.StatusExecuted)
	}
	if !cur.Type.Compensable() {
		return nil, fmt.Errorf("rolling back %s action %s: %w", cur.Type, id, entities.ErrNoCompensator)
	}

	marker := m.mark(cur, entities.StatusRollingBack)
	if err := m.actions.CompareAndSwap(ctx, entities.StatusExecuted, marker, nil); err != nil {
		return nil, m.swapError(ctx, err, id, string(entities.OpRollback), entities.StatusExecuted)
	}
	m.inflight.Store(id, struct{}{})
	defer m.inflight.Delete(id)

	resolveCtx := context.WithoutCancel(ctx)
	if cerr := m.executor.Compensate(ctx, cur.Type, cur.Payload, cur.ExecutionResult); cerr != nil {
		if err := m.actions.CompareAndSwap(resolveCtx, entities.StatusRollingBack, cur, nil); err != nil {
			return nil, fmt.Errorf("restoring %s after failed rollback: %w", id, err)
		}
		m.opts.logger.Warn("compensation failed", "action", id, "error", cerr)
		return nil, &entities.ExecutionError{ActionID: id, Op: string(entities.OpRollback), Err: cerr}
	}

	next := cur.Clone()
	next.Status = entities.StatusRolledBack
	next.UpdatedAt = m.opts.stamp()
	if err := m.swap(resolveCtx, entities.StatusRollingBack, next, entities.EventRolledBack, entities.StatusExecuted, actor, reason); err != nil {
		return nil, fmt.Errorf("recording rollback of %s: %w", id, err)
	}
	m.opts.logger.Info("action rolled back", "action", id, "actor", actor)
	return next, nil
}

// Reconcile resolves an action left in a transient marker by a crash. An
// interrupted execution returns to proposed with ExecutionError set; an
// interrupted rollback returns to executed. Markers whose side effect is
// running in this process, or that are younger than the stale-marker age,
// are refused with ErrSideEffectInFlight.
func (m *LifecycleManager) Reconcile(ctx context.Context, id string, actor entities.Actor, notes string) (*entities.Action, error) {
	cur, err := m.actions.FindAction(ctx, id)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	next.MarkedAt = nil
	next.UpdatedAt = m.opts.stamp()
	var prior entities.ActionStatus
	switch cur.Status {
	case entities.StatusExecuting:
		prior = entities.StatusApproved
		next.Status = entities.StatusProposed
		next.ExecutionError = "execution outcome unknown; verify with the external system before retrying"
	case entities.StatusRollingBack:
		prior = entities.StatusExecuted
		next.Status = entities.StatusExecuted
	default:
		return nil, conflict(cur, "reconcile", entities.StatusExecuting, entities.StatusRollingBack)
	}

	if _, running := m.inflight.Load(id); running {
		return nil, fmt.Errorf("reconciling %s: %w", id, entities.ErrSideEffectInFlight)
	}
	if cur.MarkedAt != nil {
		if age := next.UpdatedAt.Sub(*cur.MarkedAt); age < m.opts.staleMarker {
			return nil, fmt.Errorf("reconciling %s: marker is %s old: %w", id, age.Round(time.Second), entities.ErrSideEffectInFlight)
		}
	}

	if err := m.swap(ctx, cur.Status, next, entities.EventReconciled, prior, actor, notes); err != nil {
		return nil, m.swapError(ctx, err, id, "reconcile", cur.Status)
	}
	m.opts.logger.Warn("action reconciled", "action", id, "from", cur.Status, "to", next.Status, "actor", actor)
	return next, nil
}

// History returns the audit entries of one action in append order.
func (m *LifecycleManager) History(ctx context.Context, id string) ([]entities.AuditEntry, error) {
	if _, err := m.actions.FindAction(ctx, id); err != nil {
		return nil, err
	}
	return m.audit.ListAudit(ctx, entities.AuditQuery{ActionID: id, Ascending: true})
}

// Audit returns audit entries matching q.
func (m *LifecycleManager) Audit(ctx context.Context, q entities.AuditQuery) ([]entities.AuditEntry, error) {
	entries, err := m.audit.ListAudit(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return entries, nil
}

// VerifyAudit checks the whole audit hash chain. It returns the id of the
// first broken entry, or 0 if the chain is intact.
func (m *LifecycleManager) VerifyAudit(ctx context.Context) (int64, error) {
	entries, err := m.audit.ListAudit(ctx, entities.AuditQuery{Ascending: true})
	if err != nil {
		return 0, fmt.Errorf("listing audit log: %w", err)
	}
	if i := entities.VerifyAuditChain(entries); i >= 0 {
		return entries[i].ID, nil
	}
	return 0, nil
}

// BulkRequest applies one operation to many actions.
type BulkRequest struct {
	Operation entities.Operation `json:"operation"`
	ActionIDs []string           `json:"action_ids"`
	Reason    string             `json:"reason,omitempty"`
}

// BulkFailure is one action a bulk operation could not apply to.
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult lists processed and failed ids in request order.
type BulkResult struct {
	Processed []string      `json:"processed"`
	Failed    []BulkFailure `json:"failed"`
}

// Bulk applies approve, execute or reject to each id independently. Distinct
// ids run in parallel up to the worker limit; a repeated id is processed once
// and its repeats are reported as failures. It never stops at the first failure.
func (m *LifecycleManager) Bulk(ctx context.Context, req BulkRequest, actor entities.Actor) (*BulkResult, error) {
	op, err := entities.ParseOperation(string(req.Operation))
	if err != nil {
		return nil, err
	}

	errs := make([]error, len(req.ActionIDs))
	seen := make(map[string]bool, len(req.ActionIDs))

	var g errgroup.Group
	g.SetLimit(m.opts.workers)
	for i, id := range req.ActionIDs {
		if seen[id] {
			errs[i] = errors.New("duplicate action id in request")
			continue
		}
		seen[id] = true
		g.Go(func() error {
			errs[i] = m.apply(ctx, op, id, actor, req.Reason)
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{Processed: []string{}, Failed: []BulkFailure{}}
	for i, id := range req.ActionIDs {
		if errs[i] != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Error: errs[i].Error()})
			continue
		}
		res.Processed = append(res.Processed, id)
	}

	m.opts.logger.Info("bulk operation finished", "operation", op, "processed", len(res.Processed), "failed", len(res.Failed), "actor", actor)
	return res, nil
}

func (m *LifecycleManager) apply(ctx context.Context, op entities.Operation, id string, actor entities.Actor, reason string) error {
	var err error
	switch op {
	case entities.OpApprove:
		_, err = m.Approve(ctx, id, actor)
	case entities.OpExecute:
		_, err = m.Execute(ctx, id, actor)
	case entities.OpReject:
		_, err = m.Reject(ctx, id, actor, reason)
	default:
		err = fmt.Errorf("unsupported operation %s", op)
	}
	return err
}

// transition is the common path for audited single-step transitions.
func (m *LifecycleManager) transition(
	ctx context.Context,
	id, op string,
	from []entities.ActionStatus,
	to entities.ActionStatus,
	event string,
	actor entities.Actor,
	notes string,
) (*entities.Action, error) {
	cur, err := m.actions.FindAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, cur.Status) {
		return nil, conflict(cur, op, from...)
	}

	next := cur.Clone()
	next.Status = to
	next.UpdatedAt = m.opts.stamp()

	if err := m.swap(ctx, cur.Status, next, event, cur.Status, actor, notes); err != nil {
		return nil, m.swapError(ctx, err, id, op, from...)
	}
	m.opts.logger.Info("action "+event, "action", id, "actor", actor)
	return next, nil
}

// mark returns a copy of a in a transient marker status stamped with the
// current time. UpdatedAt is left alone; markers are not audited.
func (m *LifecycleManager) mark(a *entities.Action, status entities.ActionStatus) *entities.Action {
	marker := a.Clone()
	marker.Status = status
	at := m.opts.stamp()
	marker.MarkedAt = &at
	return marker
}

// swap writes next with an audit entry recording prior -> next.Status.
func (m *LifecycleManager) swap(
	ctx context.Context,
	expected entities.ActionStatus,
	next *entities.Action,
	event string,
	prior entities.ActionStatus,
	actor entities.Actor,
	notes string,
) error {
	entry, err := entities.NewAuditEntry(next, event, prior, actor, notes)
	if err != nil {
		return err
	}
	return m.actions.CompareAndSwap(ctx, expected, next, entry)
}

// swapError turns a lost compare-and-swap into a StateConflictError with the
// status the winner left behind.
func (m *LifecycleManager) swapError(ctx context.Context, err error, id, op string, want ...entities.ActionStatus) error {
	if !errors.Is(err, entities.ErrStatusMismatch) {
		return err
	}
	cur, ferr := m.actions.FindAction(ctx, id)
	if ferr != nil {
		return ferr
	}
	return conflict(cur, op, want...)
}

func conflict(a *entities.Action, op string, want ...entities.ActionStatus) error {
	return &entities.StateConflictError{ActionID: a.ID, Op: op, Current: a.Status, Expected: want}
}
