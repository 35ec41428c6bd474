package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/inkwell-ai/inkwell/internal/document"
	"github.com/inkwell-ai/inkwell/internal/permission"
	"github.com/inkwell-ai/inkwell/internal/usage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

// EvaluateRequest is the body for POST /agent/{agentID}/evaluate.
type EvaluateRequest struct {
	Action  types.AgentAction   `json:"action"`
	Context types.ActionContext `json:"context"`
}

// evaluateAction handles POST /agent/{agentID}/evaluate. Pure decision, no
// side effects.
func (s *Server) evaluateAction(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Action.RequestedAt.IsZero() {
		req.Action.RequestedAt = time.Now()
	}

	result := s.engine.Evaluate(r.Context(), agentID, req.Action, req.Context)
	writeJSON(w, http.StatusOK, result)
}

// PerformActionRequest is the body for POST /agent/{agentID}/actions.
type PerformActionRequest struct {
	Action  types.AgentAction   `json:"action"`
	Context types.ActionContext `json:"context"`

	// Content is the produced content to apply when the action results in a
	// document change. Falls back to Action.NewText.
	Content string `json:"content,omitempty"`

	// Actuals from the content producer, recorded post-execution. Fall back
	// to the action's estimates when absent.
	ActualWords     int   `json:"actualWords,omitempty"`
	ActualCostCents int64 `json:"actualCostCents,omitempty"`
}

// PerformActionResponse is the response for POST /agent/{agentID}/actions.
type PerformActionResponse struct {
	Result     types.EvaluationResult    `json:"result"`
	Resolution *types.ApprovalResolution `json:"resolution,omitempty"`
	State      *types.DocumentState      `json:"state,omitempty"`

	// UsageWarning is set when post-execution recording crossed a budget,
	// a post-hoc policy violation reported rather than silently permitted.
	UsageWarning string `json:"usageWarning,omitempty"`
}

// performAction handles POST /agent/{agentID}/actions: the full pipeline of
// evaluate, await approval when required, apply the resulting change, and
// record actual usage.
func (s *Server) performAction(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var req PerformActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	action := req.Action
	if action.ID == "" {
		action.ID = ulid.Make().String()
	}
	if action.RequestedAt.IsZero() {
		action.RequestedAt = time.Now()
	}

	result := s.engine.Evaluate(r.Context(), agentID, action, req.Context)
	resp := PerformActionResponse{Result: result}

	switch result.Decision {
	case types.DecisionDenied:
		writeJSON(w, http.StatusForbidden, resp)
		return
	case types.DecisionRateLimited:
		writeJSON(w, http.StatusTooManyRequests, resp)
		return
	case types.DecisionCostLimited:
		writeJSON(w, http.StatusPaymentRequired, resp)
		return
	case types.DecisionRequiresApproval:
		pending, err := s.approvals.Request(r.Context(), agentID, action, result.ApprovalScope, result.ApprovalTimeout)
		if err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
		resolution, err := pending.Await(r.Context())
		if err != nil {
			// Caller went away; the request was withdrawn.
			writeError(w, http.StatusRequestTimeout, ErrCodeExpired, "action cancelled while awaiting approval")
			return
		}
		resp.Resolution = &resolution
		if !resolution.Approved {
			writeJSON(w, http.StatusForbidden, resp)
			return
		}
	}

	// Allowed, or approved above: apply the resulting document change.
	if change, ok := changeForAction(agentID, action, req.Content); ok {
		state, err := s.documents.Apply(r.Context(), change)
		if err != nil {
			switch {
			case errors.Is(err, document.ErrConflictUnresolvable):
				writeErrorWithDetails(w, http.StatusConflict, ErrCodeConflictUnresolvable, err.Error(), map[string]any{
					"documentID": change.DocumentID,
					"position":   change.Position,
				})
			case errors.Is(err, document.ErrDocumentNotFound):
				writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			}
			return
		}
		resp.State = state
	}

	// Record actuals only now that the action executed.
	words := req.ActualWords
	if words == 0 {
		words = action.EstimatedWords
	}
	cost := req.ActualCostCents
	if cost == 0 {
		cost = action.EstimatedCostCents
	}
	limits, _ := s.engine.Permissions(r.Context(), agentID)
	if err := s.usage.Record(agentID, req.Context.SessionID, words, cost, limits); err != nil {
		var be *usage.BudgetError
		if errors.As(err, &be) {
			resp.UsageWarning = "actual usage exceeded budget: " + be.LimitType
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// changeForAction maps a content-mutating action onto a document change.
// Research, generation, and external API actions produce none.
func changeForAction(agentID string, a types.AgentAction, content string) (types.DocumentChange, bool) {
	if content == "" {
		content = a.NewText
	}
	base := types.DocumentChange{
		DocumentID: a.DocumentID,
		Position:   a.Position,
		ActorID:    agentID,
		Source:     types.SourceAgent,
		Expected:   a.OldText,
		Timestamp:  time.Now(),
	}
	switch a.Type {
	case types.ActionWrite:
		base.Op = types.OpInsert
		base.Content = content
	case types.ActionEdit:
		base.Op = types.OpReplace
		base.Length = a.Length
		base.Content = content
	case types.ActionDelete:
		base.Op = types.OpDelete
		base.Length = a.Length
	default:
		return types.DocumentChange{}, false
	}
	return base, a.DocumentID != ""
}

// getUsage handles GET /agent/{agentID}/usage.
func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	sessionID := r.URL.Query().Get("sessionID")
	writeJSON(w, http.StatusOK, s.usage.Check(agentID, sessionID))
}

// getPermissions handles GET /agent/{agentID}/permissions.
func (s *Server) getPermissions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	perms, err := s.engine.Permissions(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, permission.ErrPermissionsNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "permissions not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

// UpdatePermissionsRequest is the body for PUT /agent/{agentID}/permissions.
type UpdatePermissionsRequest struct {
	Permissions types.AgentPermissions `json:"permissions"`
	UpdatedBy   string                 `json:"updatedBy"`
}

// updatePermissions handles PUT /agent/{agentID}/permissions. Cache
// invalidation happens inside the engine before this returns success.
func (s *Server) updatePermissions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var req UpdatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	req.Permissions.AgentInstanceID = agentID

	if err := s.engine.UpdatePermissions(r.Context(), &req.Permissions, req.UpdatedBy); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req.Permissions)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
