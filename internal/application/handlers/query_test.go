package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

func TestQueryHandler(t *testing.T) {
	app := newTestApp(t)
	q := NewQueryHandler(app.query, app.lifecycle)
	a := app.propose(t, entities.ActionDraft{RiskLevel: entities.RiskHigh})
	app.propose(t, entities.ActionDraft{Type: entities.ActionCreateTask})
	_, err := app.lifecycle.Approve(t.Context(), a.ID, entities.ActorHuman)
	require.NoError(t, err)

	detail, err := q.Show(t.Context(), a.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, a.ID, detail.Action.ID)
	require.Len(t, detail.History, 2)
	assert.Equal(t, entities.EventApproved, detail.History[1].Event)

	list, err := q.List(t.Context(), services.ActionQuery{Filter: entities.ActionFilter{RiskLevel: entities.RiskHigh}})
	require.NoError(t, err)
	require.Len(t, list, 1)

	groups, err := q.Grouped(t.Context(), entities.ActionFilter{})
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	entries, err := q.Audit(t.Context(), entities.AuditQuery{ActionID: a.ID[:8]})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	v, err := q.Verify(t.Context())
	require.NoError(t, err)
	assert.True(t, v.Intact)
	assert.Equal(t, 3, v.Entries)
}

func TestQueryHandler_AuditUnknownPrefix(t *testing.T) {
	app := newTestApp(t)
	q := NewQueryHandler(app.query, app.lifecycle)

	_, err := q.Audit(t.Context(), entities.AuditQuery{ActionID: "zzzz"})
	assert.True(t, entities.IsNotFound(err))

	_, err = q.Show(t.Context(), "zzzz")
	assert.True(t, entities.IsNotFound(err))
}
