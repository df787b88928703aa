package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/mocks"
	"github.com/ersonp/spellstock-core/internal/domain/services"
	"github.com/ersonp/spellstock-core/internal/infrastructure/store/memory"
)

type testServer struct {
	server     *Server
	srv        *httptest.Server
	lifecycle  *services.LifecycleManager
	executor   *mocks.Executor
	translator *mocks.Translator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	exec := &mocks.Executor{}
	history := &mocks.History{Default: entities.HistoricalContext{AvgDailyUse: 4, Trend: entities.TrendStable}}

	lifecycle := services.NewLifecycleManager(store, store, exec)
	query := services.NewQueryService(store)
	gate := services.NewEligibilityGate(store, history, services.DefaultDedupWindow)
	proposer := services.NewProposalGenerator(lifecycle)
	pipeline := services.NewPipeline(services.RuleConfig{MinConfidence: 0.6, MaxDaysOut: 7}, gate, proposer, nil)
	translator := &mocks.Translator{}

	s := NewServer(Handlers{
		Actions:   handlers.NewActionsHandler(query, lifecycle),
		Query:     handlers.NewQueryHandler(query, lifecycle),
		Alerts:    handlers.NewAlertsHandler(store, nil, 24*time.Hour),
		Autopilot: handlers.NewAutopilotHandler(services.NewAutopilot(store, lifecycle), services.ModeOff),
		Agent:     handlers.NewAgentHandler(translator, services.NewCommandDispatcher(query, lifecycle, proposer, store, gate)),
		Ingest:    handlers.NewIngestHandler(pipeline),
	}, nil)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{server: s, srv: srv, lifecycle: lifecycle, executor: exec, translator: translator}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, "test")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) create(t *testing.T, d entities.ActionDraft) *entities.Action {
	t.Helper()
	if d.Type == "" {
		d.Type = entities.ActionDraftPO
	}
	if d.Payload.Ingredient == "" {
		d.Payload.Ingredient = "chicken_breast"
	}
	var a entities.Action
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/actions", d, &a))
	return &a
}

func TestServer_Lifecycle(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, entities.ActionDraft{RiskLevel: entities.RiskHigh})
	assert.Equal(t, entities.StatusProposed, a.Status)

	var got entities.Action
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/actions/"+a.ID[:8]+"/approve", nil, &got))
	assert.Equal(t, entities.StatusApproved, got.Status)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/actions/"+a.ID+"/execute", nil, &got))
	assert.Equal(t, entities.StatusExecuted, got.Status)
	require.NotNil(t, got.ExecutionResult)

	var errBody errorBody
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/actions/"+a.ID+"/execute", nil, &errBody))
	assert.Contains(t, errBody.Error, "wrong state")
	assert.Equal(t, 1, ts.executor.PerformCallCount())

	var detail handlers.ActionDetail
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/actions/"+a.ID, nil, &detail))
	assert.Len(t, detail.History, 3)

	var v handlers.AuditVerification
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/audit/verify", nil, &v))
	assert.True(t, v.Intact)
}

func TestServer_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ack := ts.create(t, entities.ActionDraft{Type: entities.ActionAcknowledgeAlert})
	_, err := ts.lifecycle.Approve(t.Context(), ack.ID, entities.ActorHuman)
	require.NoError(t, err)
	_, err = ts.lifecycle.Execute(t.Context(), ack.ID, entities.ActorHuman)
	require.NoError(t, err)

	failing := ts.create(t, entities.ActionDraft{Payload: entities.Payload{Ingredient: "salmon"}})
	_, err = ts.lifecycle.Approve(t.Context(), failing.ID, entities.ActorHuman)
	require.NoError(t, err)
	ts.executor.FailFor = map[string]error{"salmon": errors.New("vendor down")}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "unknown action", method: http.MethodPost, path: "/actions/zzzzzzzz/approve", status: http.StatusNotFound},
		{name: "invalid draft", method: http.MethodPost, path: "/actions", body: entities.ActionDraft{Type: "launch"}, status: http.StatusBadRequest},
		{name: "invalid filter", method: http.MethodGet, path: "/actions?risk_level=extreme", status: http.StatusBadRequest},
		{name: "bad limit", method: http.MethodGet, path: "/actions?limit=-1", status: http.StatusBadRequest},
		{name: "no compensator", method: http.MethodPost, path: "/actions/" + ack.ID + "/rollback", status: http.StatusUnprocessableEntity},
		{name: "executor failure", method: http.MethodPost, path: "/actions/" + failing.ID + "/execute", status: http.StatusBadGateway},
		{name: "no alert index", method: http.MethodGet, path: "/alerts/similar?q=chicken", status: http.StatusNotImplemented},
		{name: "bad autopilot mode", method: http.MethodPost, path: "/autopilot", body: autopilotBody{Mode: "reckless"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errBody errorBody
			assert.Equal(t, tt.status, ts.do(t, tt.method, tt.path, tt.body, &errBody))
			assert.NotEmpty(t, errBody.Error)
		})
	}
}

func TestServer_ListAndBulk(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, entities.ActionDraft{})
	b := ts.create(t, entities.ActionDraft{Type: entities.ActionCreateTask, Payload: entities.Payload{Ingredient: "salmon"}})

	var list []entities.Action
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/actions?ingredient=salmon", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	var res services.BulkResult
	req := services.BulkRequest{Operation: entities.OpReject, ActionIDs: []string{a.ID, "nope-nope"}, Reason: "not needed"}
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/actions/bulk", req, &res))
	assert.Equal(t, []string{a.ID}, res.Processed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "nope-nope", res.Failed[0].ID)

	var entries []entities.AuditEntry
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/audit?status=rejected", nil, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "not needed", entries[0].Notes)
}

func TestServer_Autopilot(t *testing.T) {
	ts := newTestServer(t)
	low := ts.create(t, entities.ActionDraft{Type: entities.ActionCreateTask})
	high := ts.create(t, entities.ActionDraft{RiskLevel: entities.RiskCritical})

	var res services.AutopilotResult
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/autopilot", autopilotBody{Mode: "guarded"}, &res))
	assert.Equal(t, []string{low.ID}, res.AutoExecuted)
	assert.Equal(t, []string{high.ID}, res.HeldForApproval)
}

func TestServer_Agent(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, entities.ActionDraft{})
	ts.create(t, entities.ActionDraft{Payload: entities.Payload{Ingredient: "salmon"}})
	ts.translator.Command = &entities.Command{Intent: entities.IntentFilter, Filter: entities.ActionFilter{Ingredient: "salmon"}}

	var res handlers.AgentResult
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/agent", agentBody{Text: "only salmon"}, &res))
	assert.Len(t, res.Result.Actions, 1)

	// The filter sticks to the session.
	view := &entities.Command{Intent: entities.IntentView}
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/agent", agentBody{Command: view}, &res))
	assert.Len(t, res.Result.Actions, 1)

	var errBody errorBody
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/agent", agentBody{}, &errBody))
}

func TestServer_AgentSharedSessionConcurrency(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, entities.ActionDraft{})
	ts.create(t, entities.ActionDraft{Payload: entities.Payload{Ingredient: "salmon"}})
	router := ts.server.Router()

	const requests = 50
	codes := make([]int, requests)
	var wg sync.WaitGroup
	for i := range requests {
		cmd := &entities.Command{Intent: entities.IntentView}
		if i%2 == 0 {
			ingredient := "salmon"
			if i%4 == 0 {
				ingredient = "chicken"
			}
			cmd = &entities.Command{Intent: entities.IntentFilter, Filter: entities.ActionFilter{Ingredient: ingredient}}
		}
		body, err := json.Marshal(agentBody{Command: cmd})
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			// No session header: every request shares the anonymous session.
			req := httptest.NewRequest(http.MethodPost, "/agent", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
}

func TestServer_SessionEviction(t *testing.T) {
	s := NewServer(Handlers{}, nil)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	request := func(id string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/agent", nil)
		req.Header.Set(SessionHeader, id)
		return req
	}

	first := s.session(request("first"))
	assert.Same(t, first, s.session(request("first")))

	for i := range MaxSessions + 10 {
		now = now.Add(time.Millisecond)
		s.session(request(fmt.Sprintf("s-%d", i)))
	}
	assert.Len(t, s.sessions, MaxSessions)
	assert.NotContains(t, s.sessions, "first", "least recently used goes first")

	now = now.Add(SessionIdleTimeout + time.Second)
	s.session(request("fresh"))
	assert.Len(t, s.sessions, 1)
}

func TestServer_IngestAndAlerts(t *testing.T) {
	ts := newTestServer(t)
	feed := strings.Join([]string{
		`{"item_id":"chicken_breast","restaurant_id":1,"stockout_probability":0.82,"days_until_event":2}`,
		`{"item_id":"basil","restaurant_id":1,"stockout_probability":0.3}`,
	}, "\n")

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.srv.URL+"/ingest?format=jsonl", strings.NewReader(feed))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary services.PipelineSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, 1, summary.ActionsProposed)

	var alerts []entities.Alert
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/alerts", nil, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, entities.SeverityHigh, alerts[0].Severity)

	var one entities.Alert
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/alerts/"+alerts[0].ID, nil, &one))
	assert.Equal(t, "chicken_breast", one.Key.IngredientID)
}
