package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
)

func ids(actions []*entities.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.ID)
	}
	return out
}

func TestQueryService_List(t *testing.T) {
	f := newFixture(t)
	po := f.create(t, entities.ActionDraft{RiskLevel: entities.RiskMedium, Payload: entities.Payload{Ingredient: "chicken_breast", Quantity: 20}})
	task := f.create(t, entities.ActionDraft{Type: entities.ActionCreateTask, RiskLevel: entities.RiskCritical, Payload: entities.Payload{Ingredient: "salmon"}})
	eta := f.create(t, entities.ActionDraft{Type: entities.ActionUpdateDeliveryETA, RiskLevel: entities.RiskHigh, Payload: entities.Payload{Ingredient: "chicken_thigh"}})

	t.Run("default order is creation", func(t *testing.T) {
		list, err := f.query.List(t.Context(), ActionQuery{})
		require.NoError(t, err)
		assert.Equal(t, []string{po.ID, task.ID, eta.ID}, ids(list))
	})

	t.Run("filter", func(t *testing.T) {
		list, err := f.query.List(t.Context(), ActionQuery{Filter: entities.ActionFilter{Ingredient: "chicken"}})
		require.NoError(t, err)
		assert.Equal(t, []string{po.ID, eta.ID}, ids(list))

		list, err = f.query.List(t.Context(), ActionQuery{Filter: entities.ActionFilter{OwnerRole: "kitchen"}})
		require.NoError(t, err)
		assert.Equal(t, []string{task.ID}, ids(list))
	})

	t.Run("sort by risk descending", func(t *testing.T) {
		list, err := f.query.List(t.Context(), ActionQuery{SortBy: "risk_level", Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{task.ID, eta.ID, po.ID}, ids(list))
	})

	t.Run("limit and offset", func(t *testing.T) {
		list, err := f.query.List(t.Context(), ActionQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{task.ID}, ids(list))

		list, err = f.query.List(t.Context(), ActionQuery{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := f.query.List(t.Context(), ActionQuery{SortBy: "color"})
		assert.True(t, entities.IsValidation(err))
		_, err = f.query.List(t.Context(), ActionQuery{Filter: entities.ActionFilter{Status: "pending"}})
		assert.True(t, entities.IsValidation(err))
	})

	t.Run("group by owner", func(t *testing.T) {
		groups, err := f.query.GroupByOwner(t.Context(), entities.ActionFilter{})
		require.NoError(t, err)
		assert.Len(t, groups[entities.RolePurchasing], 1)
		assert.Len(t, groups[entities.RoleKitchen], 1)
		assert.Len(t, groups[entities.RoleVendorOps], 1)
	})
}

func TestSortActions_TieBreak(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, entities.ActionDraft{RiskLevel: entities.RiskHigh})
	second := f.create(t, entities.ActionDraft{RiskLevel: entities.RiskHigh})

	for _, desc := range []bool{false, true} {
		list, err := f.query.List(t.Context(), ActionQuery{SortBy: "risk_level", Descending: desc})
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID, second.ID}, ids(list), "descending=%v", desc)
	}
}

func TestQueryService_Resolve(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, entities.ActionDraft{})

	got, err := f.query.Resolve(t.Context(), a.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, a.ID, got)

	full, err := f.query.Get(t.Context(), a.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, a.ID, full.ID)

	_, err = f.query.Resolve(t.Context(), a.ID[:3])
	assert.True(t, entities.IsNotFound(err), "short prefixes are not expanded")

	_, err = f.query.Resolve(t.Context(), "ffffffff-none")
	assert.True(t, entities.IsNotFound(err))

	_, err = f.query.ResolveAll(t.Context(), []string{a.ID, "nope-nope"})
	assert.True(t, entities.IsNotFound(err))
}
