package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
	"github.com/ersonp/spellstock-core/internal/domain/entities"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

func filterParams(r *http.Request) entities.ActionFilter {
	q := r.URL.Query()
	return entities.ActionFilter{
		Status:         entities.ActionStatus(q.Get("status")),
		OwnerRole:      entities.OwnerRole(q.Get("owner_role")),
		RiskLevel:      entities.RiskLevel(q.Get("risk_level")),
		ActionType:     entities.ActionType(q.Get("action_type")),
		Ingredient:     q.Get("ingredient"),
		ReasonContains: q.Get("reason"),
	}
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actions, err := s.h.Query.List(r.Context(), services.ActionQuery{
		Filter:     filterParams(r),
		SortBy:     r.URL.Query().Get("sort"),
		Descending: r.URL.Query().Get("desc") == "true",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []*entities.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) groupedActions(w http.ResponseWriter, r *http.Request) {
	groups, err := s.h.Query.Grouped(r.Context(), filterParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) addAction(w http.ResponseWriter, r *http.Request) {
	var d entities.ActionDraft
	if err := decode(r, &d); err != nil {
		s.writeError(w, r, err)
		return
	}
	action, err := s.h.Actions.Add(r.Context(), d, actorParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func (s *Server) showAction(w http.ResponseWriter, r *http.Request) {
	detail, err := s.h.Query.Show(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.h.Actions.Approve(r.Context(), chi.URLParam(r, "id"), actorParam(r)))
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.h.Actions.Execute(r.Context(), chi.URLParam(r, "id"), actorParam(r)))
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.h.Actions.Reject(r.Context(), chi.URLParam(r, "id"), actorParam(r), body.Reason))
}

func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.h.Actions.Rollback(r.Context(), chi.URLParam(r, "id"), actorParam(r), body.Reason))
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.h.Actions.Reconcile(r.Context(), chi.URLParam(r, "id"), actorParam(r), body.Reason))
}

// respond writes the outcome of a single-action transition.
func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(*entities.Action, error) {
	return func(a *entities.Action, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func (s *Server) reconcileAll(w http.ResponseWriter, r *http.Request) {
	fixed, err := s.h.Actions.ReconcileAll(r.Context(), actorParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if fixed == nil {
		fixed = []*entities.Action{}
	}
	writeJSON(w, http.StatusOK, fixed)
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	var req services.BulkRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.h.Actions.Bulk(r.Context(), req, actorParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := entities.AuditQuery{
		ActionID:  r.URL.Query().Get("action_id"),
		NewStatus: entities.ActionStatus(r.URL.Query().Get("status")),
		Limit:     limit,
	}
	entries, err := s.h.Query.Audit(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []entities.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) verifyAudit(w http.ResponseWriter, r *http.Request) {
	v, err := s.h.Query.Verify(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) activeAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.h.Alerts.Active(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []*entities.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) getAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.h.Alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) similarAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, r, &entities.ValidationError{Field: "q", Message: "is required"})
		return
	}
	restaurant, err := intParam(r, "restaurant_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 10
	}
	matches, err := s.h.Alerts.Similar(r.Context(), query, restaurant, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []entities.AlertMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

type autopilotBody struct {
	Mode string `json:"mode"`
}

func (s *Server) runAutopilot(w http.ResponseWriter, r *http.Request) {
	var body autopilotBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.h.Autopilot.Handle(r.Context(), body.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// agentBody holds either free text for the translator or an already typed
// command.
type agentBody struct {
	Text    string            `json:"text,omitempty"`
	Command *entities.Command `json:"command,omitempty"`
}

func (s *Server) agent(w http.ResponseWriter, r *http.Request) {
	if s.h.Agent == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "agent not configured"})
		return
	}
	var body agentBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess := s.session(r)
	var (
		res *handlers.AgentResult
		err error
	)
	switch {
	case body.Command != nil:
		res, err = s.h.Agent.Dispatch(r.Context(), sess, body.Command)
	case body.Text != "":
		res, err = s.h.Agent.Handle(r.Context(), sess, body.Text)
	default:
		err = &entities.ValidationError{Field: "body", Message: "needs text or command"}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	if s.h.Ingest == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "ingest not configured"})
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "jsonl"
	}
	summary, err := s.h.Ingest.HandleReader(r.Context(), r.Body, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
