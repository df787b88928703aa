package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
)

// MinIDPrefix is the shortest id prefix accepted by Resolve.
const MinIDPrefix = 4

// SortFields lists the fields actions can be sorted by.
var SortFields = []string{
	"created_at", "updated_at", "action_id", "action_type", "status",
	"risk_level", "owner_role", "ingredient", "quantity",
}

// ActionQuery selects, orders and pages actions.
type ActionQuery struct {
	Filter     entities.ActionFilter
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

// QueryService is a read-only view over the action store.
type QueryService struct {
	actions ports.ActionStore
}

// NewQueryService creates a new QueryService.
func NewQueryService(actions ports.ActionStore) *QueryService {
	return &QueryService{actions: actions}
}

// List returns matching actions in the requested order.
func (s *QueryService) List(ctx context.Context, q ActionQuery) ([]*entities.Action, error) {
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, &entities.ValidationError{Field: "limit", Message: "limit and offset must not be negative"}
	}

	all, err := s.actions.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}

	matched := FilterActions(all, q.Filter)
	if err := SortActions(matched, q.SortBy, q.Descending); err != nil {
		return nil, err
	}

	if q.Offset >= len(matched) {
		return []*entities.Action{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Get returns an action by id or unique id prefix.
func (s *QueryService) Get(ctx context.Context, idOrPrefix string) (*entities.Action, error) {
	a, err := s.actions.FindAction(ctx, idOrPrefix)
	if err == nil {
		return a, nil
	}
	if !entities.IsNotFound(err) {
		return nil, err
	}
	id, err := s.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return s.actions.FindAction(ctx, id)
}

// Resolve expands a unique id prefix of at least MinIDPrefix characters to
// the full id. Ambiguous prefixes are a ValidationError.
func (s *QueryService) Resolve(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if _, err := s.actions.FindAction(ctx, idOrPrefix); err == nil {
		return idOrPrefix, nil
	} else if !entities.IsNotFound(err) {
		return "", err
	}
	if len(idOrPrefix) < MinIDPrefix {
		return "", &entities.NotFoundError{Kind: "action", ID: idOrPrefix}
	}

	all, err := s.actions.ListActions(ctx)
	if err != nil {
		return "", fmt.Errorf("listing actions: %w", err)
	}
	var matches []string
	for _, a := range all {
		if strings.HasPrefix(a.ID, idOrPrefix) {
			matches = append(matches, a.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &entities.NotFoundError{Kind: "action", ID: idOrPrefix}
	case 1:
		return matches[0], nil
	default:
		return "", &entities.ValidationError{Field: "action_id", Value: idOrPrefix, Message: fmt.Sprintf("prefix matches %d actions", len(matches))}
	}
}

// ResolveAll resolves every id, failing on the first that cannot be resolved.
func (s *QueryService) ResolveAll(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		full, err := s.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}

// GroupByOwner returns matching actions keyed by owner role, each group in
// creation order.
func (s *QueryService) GroupByOwner(ctx context.Context, f entities.ActionFilter) (map[entities.OwnerRole][]*entities.Action, error) {
	list, err := s.List(ctx, ActionQuery{Filter: f})
	if err != nil {
		return nil, err
	}
	groups := make(map[entities.OwnerRole][]*entities.Action)
	for _, a := range list {
		groups[a.OwnerRole] = append(groups[a.OwnerRole], a)
	}
	return groups, nil
}

// Prioritize returns matching actions by risk, highest first, then oldest first.
func (s *QueryService) Prioritize(ctx context.Context, f entities.ActionFilter) ([]*entities.Action, error) {
	return s.List(ctx, ActionQuery{Filter: f, SortBy: "risk_level", Descending: true})
}

// FilterActions returns the actions matching f, keeping their order.
func FilterActions(actions []*entities.Action, f entities.ActionFilter) []*entities.Action {
	out := make([]*entities.Action, 0, len(actions))
	for _, a := range actions {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// SortActions sorts in place by field. Ties always break on created_at then
// action_id ascending, whatever the direction. An empty field sorts by
// created_at.
func SortActions(actions []*entities.Action, field string, desc bool) error {
	primary, err := comparator(field)
	if err != nil {
		return err
	}
	slices.SortStableFunc(actions, func(a, b *entities.Action) int {
		c := primary(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return nil
}

func comparator(field string) (func(a, b *entities.Action) int, error) {
	switch field {
	case "", "created_at":
		return func(a, b *entities.Action) int { return a.CreatedAt.Compare(b.CreatedAt) }, nil
	case "updated_at":
		return func(a, b *entities.Action) int { return a.UpdatedAt.Compare(b.UpdatedAt) }, nil
	case "action_id", "id":
		return func(a, b *entities.Action) int { return cmp.Compare(a.ID, b.ID) }, nil
	case "action_type", "type":
		return func(a, b *entities.Action) int { return cmp.Compare(a.Type, b.Type) }, nil
	case "status":
		return func(a, b *entities.Action) int { return cmp.Compare(a.Status, b.Status) }, nil
	case "risk_level", "risk":
		return func(a, b *entities.Action) int { return cmp.Compare(a.RiskLevel.Rank(), b.RiskLevel.Rank()) }, nil
	case "owner_role", "owner":
		return func(a, b *entities.Action) int { return cmp.Compare(a.OwnerRole, b.OwnerRole) }, nil
	case "ingredient":
		return func(a, b *entities.Action) int { return cmp.Compare(a.Payload.Ingredient, b.Payload.Ingredient) }, nil
	case "quantity":
		return func(a, b *entities.Action) int { return cmp.Compare(a.Payload.Quantity, b.Payload.Quantity) }, nil
	default:
		return nil, &entities.ValidationError{Field: "sort", Value: field, Message: "unknown sort field (valid: " + strings.Join(SortFields, ", ") + ")"}
	}
}
